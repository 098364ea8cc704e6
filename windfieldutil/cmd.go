/*
Copyright © 2019 the InMAP authors.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.
*/


// Package windfieldutil contains the command-line interface of the
// windfield model.
package windfieldutil

import (
	"context"
	"fmt"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/windfield"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Grid.Nx",
			usage: `
              Grid.Nx is the number of microscale grid cells in the
              west-east direction.`,
			defaultVal: 100,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Grid.Ny",
			usage: `
              Grid.Ny is the number of microscale grid cells in the
              south-north direction.`,
			defaultVal: 100,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Grid.Nz",
			usage: `
              Grid.Nz is the number of vertical layers.`,
			defaultVal: 19,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Grid.Dx",
			usage: `
              Grid.Dx is the west-east cell size in meters.`,
			defaultVal: 2.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Grid.Dy",
			usage: `
              Grid.Dy is the south-north cell size in meters.`,
			defaultVal: 2.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Grid.X0",
			usage: `
              Grid.X0 is the x coordinate of the lower-left corner of the
              microscale grid, in the coordinates of the coarse grid.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Grid.Y0",
			usage: `
              Grid.Y0 is the y coordinate of the lower-left corner of the
              microscale grid, in the coordinates of the coarse grid.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Grid.Dz",
			usage: `
              Grid.Dz is the thickness of the lowest layer in meters.`,
			defaultVal: 2.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Grid.Stretch",
			usage: `
              Grid.Stretch is the factor by which each layer is thicker
              than the one below it.`,
			defaultVal: 1.01,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "FlowLevel",
			usage: `
              FlowLevel selects how the wind field around buildings and
              vegetation is refined. Valid options are "none", "diagnostic"
              and "prognostic".`,
			defaultVal: "diagnostic",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "SubDomain.Distance",
			usage: `
              SubDomain.Distance is the maximum distance in meters between an
              emission source and the obstacles that are resolved around it.
              Values of 10000 or more use every obstacle.`,
			defaultVal: 10000.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "SubDomain.Factor",
			usage: `
              SubDomain.Factor multiplies obstacle heights to give the
              half-width of the prognostic sub-domain around them.`,
			defaultVal: 15.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "SubDomain.ExtraLayers",
			usage: `
              SubDomain.ExtraLayers is the number of layers that the prognostic
              sub-domain extends above the highest obstacle.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "SubDomain.ReferencePoint",
			usage: `
              SubDomain.ReferencePoint gives the column (i,j) of the reference
              point of the prognostic sub-domains. If it is 0,0 the point is
              chosen automatically.`,
			defaultVal: []int{0, 0},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "CoarseFiles",
			usage: `
              CoarseFiles are the paths to the coarse background grid files,
              one for each weather situation. They can be local paths, http(s)
              URLs or blob storage URLs and can include environment variables.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "TerrainFile",
			usage: `
              TerrainFile is the path to an optional ASCII grid with the terrain
              height of every microscale column. If it is empty, the terrain is
              derived from the coarse grid.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "TerrainOutput",
			usage: `
              TerrainOutput is the path where the derived terrain is written as
              an ASCII grid. If it is empty, the terrain is not written.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "TerrainOutputEverySituation",
			usage: `
              If TerrainOutputEverySituation is true, the derived terrain is
              written after every weather situation rather than only the first.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "BuildingsFile",
			usage: `
              BuildingsFile is the path to an optional polygon shapefile of
              building footprints with a "height" attribute in meters.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "VegetationFile",
			usage: `
              VegetationFile is the path to an optional vegetation file.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "DepositionFactorsFile",
			usage: `
              DepositionFactorsFile is the path to an optional file whose first
              two lines give the gas and particle deposition factors in vegetated
              columns. The defaults of 1.5 and 3 are used if it is missing or
              cannot be read.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "SourcesFile",
			usage: `
              SourcesFile is the path to an optional shapefile with the
              emission source geometries used by SubDomain.Distance.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path to the wind field output file. [SITUATION]
              is replaced by the number of the weather situation and must be
              present when there is more than one. It can include environment
              variables.`,
			defaultVal: "windfield_[SITUATION].ncf",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the path to the desired logfile location. It can include
              environment variables. If LogFile is left blank, the logfile will be
              saved next to the OutputFile.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel is the minimum level of log messages, for example
              "debug", "info" or "warning".`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
	}

	Cfg = viper.New()
	Cfg.SetEnvPrefix("WINDFIELD")
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // Flags are only created once.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case []string:
				set.StringSliceP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case []int:
				set.IntSliceP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
}

func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("windfield: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "windfield",
	Short: "A microscale diagnostic wind-field model.",
	Long: `windfield maps a coarse background wind field and terrain onto a
fine grid that resolves buildings and vegetation, and prepares it for
diagnostic and prognostic wind-field solvers.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'WINDFIELD_var' where 'var'
is the name of the variable to be set. Many configuration variables are
additionally allowed to contain environment variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of windfield.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("windfield v%s\n", windfield.Version)
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Calculate the wind field.",
	Long: `run calculates the microscale wind field for every weather situation
listed in CoarseFiles and writes one output file per situation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := RunConfigFromViper(Cfg)
		if err != nil {
			return err
		}
		return Run(context.Background(), cmd.OutOrStdout(), c)
	},
	DisableAutoGenTag: true,
}
