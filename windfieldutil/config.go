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


package windfieldutil

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/windfield"
	"github.com/spatialmodel/windfield/cloud"
	"github.com/spf13/cast"
)

// situationTag is replaced in OutputFile by the number of the weather
// situation.
const situationTag = "[SITUATION]"

// RunConfig holds the settings of a wind-field run.
type RunConfig struct {
	Grid *windfield.Grid

	FlowLevel windfield.FlowFieldLevel

	SubDomainDistance    float64
	SubDomainFactor      float64
	SubDomainExtraLayers int
	ReferencePoint       windfield.Column

	// CoarseFiles holds one coarse grid file per weather situation.
	CoarseFiles []string

	TerrainFile                 string
	TerrainOutput               string
	TerrainOutputEverySituation bool

	BuildingsFile  string
	VegetationFile string
	SourcesFile    string

	// DepositionFactorsFile holds the gas and particle deposition
	// factors for vegetated columns.
	DepositionFactorsFile string

	OutputFile string
	LogFile    string
	LogLevel   logrus.Level
}

// GridConfig creates a fine grid from the Grid.* configuration
// variables.
func GridConfig(cfg *viper.Viper) (*windfield.Grid, error) {
	vars := []float64{
		cfg.GetFloat64("Grid.Dx"),
		cfg.GetFloat64("Grid.Dy"),
		cfg.GetFloat64("Grid.Dz"),
		cfg.GetFloat64("Grid.Stretch"),
	}
	varNames := []string{"Grid.Dx", "Grid.Dy", "Grid.Dz", "Grid.Stretch"}
	for i, v := range vars {
		if !(v > 0) {
			return nil, fmt.Errorf("parsing grid configuration: %s=%g but should be >0", varNames[i], v)
		}
	}
	ints := []int{cfg.GetInt("Grid.Nx"), cfg.GetInt("Grid.Ny"), cfg.GetInt("Grid.Nz")}
	varNames = []string{"Grid.Nx", "Grid.Ny", "Grid.Nz"}
	for i, v := range ints {
		if v < 1 {
			return nil, fmt.Errorf("parsing grid configuration: %s=%d but should be >0", varNames[i], v)
		}
	}
	return windfield.NewGrid(ints[0], ints[1], vars[0], vars[1],
		cfg.GetFloat64("Grid.X0"), cfg.GetFloat64("Grid.Y0"),
		windfield.StretchedLayers(vars[2], vars[3], ints[2]))
}

// RunConfigFromViper reads a run configuration from cfg and checks it
// for consistency.
func RunConfigFromViper(cfg *viper.Viper) (*RunConfig, error) {
	g, err := GridConfig(cfg)
	if err != nil {
		return nil, err
	}
	level, err := parseFlowLevel(cfg.GetString("FlowLevel"))
	if err != nil {
		return nil, err
	}
	ref, err := toIntSliceE(cfg.Get("SubDomain.ReferencePoint"))
	if err != nil {
		return nil, fmt.Errorf("windfieldutil: SubDomain.ReferencePoint: %v", err)
	}
	if len(ref) != 2 {
		return nil, fmt.Errorf("windfieldutil: SubDomain.ReferencePoint needs 2 values but has %d", len(ref))
	}
	c := &RunConfig{
		Grid:                        g,
		FlowLevel:                   level,
		SubDomainDistance:           cfg.GetFloat64("SubDomain.Distance"),
		SubDomainFactor:             cfg.GetFloat64("SubDomain.Factor"),
		SubDomainExtraLayers:        cfg.GetInt("SubDomain.ExtraLayers"),
		ReferencePoint:              windfield.Column{I: ref[0], J: ref[1]},
		CoarseFiles:                 expandStringSlice(cfg.GetStringSlice("CoarseFiles")),
		TerrainFile:                 os.ExpandEnv(cfg.GetString("TerrainFile")),
		TerrainOutput:               os.ExpandEnv(cfg.GetString("TerrainOutput")),
		TerrainOutputEverySituation: cfg.GetBool("TerrainOutputEverySituation"),
		BuildingsFile:               os.ExpandEnv(cfg.GetString("BuildingsFile")),
		VegetationFile:              os.ExpandEnv(cfg.GetString("VegetationFile")),
		SourcesFile:                 os.ExpandEnv(cfg.GetString("SourcesFile")),
		DepositionFactorsFile:       os.ExpandEnv(cfg.GetString("DepositionFactorsFile")),
	}
	if c.SubDomainFactor < 0 {
		return nil, fmt.Errorf("windfieldutil: SubDomain.Factor=%g but should be >=0", c.SubDomainFactor)
	}
	if c.SubDomainExtraLayers < 0 {
		return nil, fmt.Errorf("windfieldutil: SubDomain.ExtraLayers=%d but should be >=0", c.SubDomainExtraLayers)
	}
	if len(c.CoarseFiles) == 0 {
		return nil, fmt.Errorf("windfieldutil: you need to specify at least one coarse grid file in the CoarseFiles configuration variable")
	}
	if c.OutputFile, err = checkOutputFile(cfg.GetString("OutputFile"), len(c.CoarseFiles)); err != nil {
		return nil, err
	}
	c.LogFile = checkLogFile(os.ExpandEnv(cfg.GetString("LogFile")), c.OutputFile)
	if c.LogLevel, err = logrus.ParseLevel(cfg.GetString("LogLevel")); err != nil {
		return nil, fmt.Errorf("windfieldutil: LogLevel: %v", err)
	}
	return c, nil
}

func parseFlowLevel(s string) (windfield.FlowFieldLevel, error) {
	for _, l := range []windfield.FlowFieldLevel{windfield.NoBuildings, windfield.Diagnostic, windfield.Prognostic} {
		if strings.EqualFold(s, l.String()) {
			return l, nil
		}
	}
	return 0, fmt.Errorf("windfieldutil: invalid FlowLevel %q; valid options are %q, %q and %q",
		s, windfield.NoBuildings, windfield.Diagnostic, windfield.Prognostic)
}

// expandStringSlice expands the environment variables in s.
func expandStringSlice(s []string) []string {
	for i := 0; i < len(s); i++ {
		s[i] = os.ExpandEnv(s[i])
	}
	return s
}

// checkOutputFile expands the environment variables in f and makes
// sure that its location exists. nSituations is the number of weather
// situations that will be written.
func checkOutputFile(f string, nSituations int) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`windfieldutil: you need to specify an output file configuration variable (for example: OutputFile="windfield_[SITUATION].ncf")`)
	}
	f = os.ExpandEnv(f)
	if nSituations > 1 && !strings.Contains(f, situationTag) {
		return f, fmt.Errorf("windfieldutil: there are %d weather situations but OutputFile %s does not contain %s", nSituations, f, situationTag)
	}
	if cloud.IsBlob(f) {
		bucketName, _, err := cloud.SplitURL(f)
		if err != nil {
			return f, err
		}
		if _, err = cloud.OpenBucket(context.TODO(), bucketName); err != nil {
			return f, fmt.Errorf("windfieldutil: error when checking OutputFile location: %v", err)
		}
		return f, nil
	}
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, fmt.Errorf("windfieldutil: the OutputFile directory doesn't exist: %v", err)
	}
	return f, nil
}

// checkLogFile returns logFile or, if it is empty, a log file next to
// the output file.
func checkLogFile(logFile, outputFile string) string {
	if logFile == "" {
		outputFile = strings.Replace(outputFile, situationTag, "all", -1)
		logFile = strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".log"
	}
	return logFile
}

// situationFile returns the output path of weather situation n.
func situationFile(outputFile string, n int) string {
	return strings.Replace(outputFile, situationTag, fmt.Sprint(n+1), -1)
}

// toIntSliceE converts a configuration value into an integer slice. The
// value may be a slice, or a JSON array as set from the command line.
func toIntSliceE(s interface{}) ([]int, error) {
	switch v := s.(type) {
	case string:
		var o []int
		if err := json.Unmarshal([]byte(v), &o); err != nil {
			return nil, err
		}
		return o, nil
	case []interface{}:
		o := make([]int, len(v))
		for i, val := range v {
			var err error
			if o[i], err = cast.ToIntE(val); err != nil {
				return nil, err
			}
		}
		return o, nil
	default:
		return cast.ToIntSliceE(s)
	}
}
