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
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/windfield"
)

// testConfig returns a valid configuration that writes its output to
// dir.
func testConfig(dir string) *viper.Viper {
	cfg := viper.New()
	for name, val := range map[string]interface{}{
		"Grid.Nx":                  10,
		"Grid.Ny":                  10,
		"Grid.Nz":                  10,
		"Grid.Dx":                  2.0,
		"Grid.Dy":                  2.0,
		"Grid.X0":                  15.0,
		"Grid.Y0":                  15.0,
		"Grid.Dz":                  2.0,
		"Grid.Stretch":             1.0,
		"FlowLevel":                "diagnostic",
		"SubDomain.Distance":       10000.0,
		"SubDomain.Factor":         15.0,
		"SubDomain.ExtraLayers":    1,
		"SubDomain.ReferencePoint": []int{0, 0},
		"CoarseFiles":              []string{filepath.Join(dir, "coarse.ncf")},
		"OutputFile":               filepath.Join(dir, "windfield_[SITUATION].ncf"),
		"LogLevel":                 "info",
	} {
		cfg.Set(name, val)
	}
	return cfg
}

func TestRunConfigFromViper(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Set("FlowLevel", "Prognostic")
	cfg.Set("SubDomain.ReferencePoint", "[3,4]")
	cfg.Set("TerrainOutputEverySituation", true)
	c, err := RunConfigFromViper(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if c.FlowLevel != windfield.Prognostic {
		t.Errorf("flow level: have %v, want %v", c.FlowLevel, windfield.Prognostic)
	}
	if c.ReferencePoint != (windfield.Column{I: 3, J: 4}) {
		t.Errorf("reference point: have %+v, want (3, 4)", c.ReferencePoint)
	}
	if c.Grid.Nx != 10 || c.Grid.Nz != 10 || c.Grid.X0 != 15 {
		t.Errorf("grid: %+v", c.Grid)
	}
	if c.Grid.LayerTop[c.Grid.Nz] != 20 {
		t.Errorf("model top: have %g, want 20", c.Grid.LayerTop[c.Grid.Nz])
	}
	if want := filepath.Join(dir, "windfield_all.log"); c.LogFile != want {
		t.Errorf("log file: have %s, want %s", c.LogFile, want)
	}
	if c.LogLevel != logrus.InfoLevel {
		t.Errorf("log level: have %v, want info", c.LogLevel)
	}
	if !c.TerrainOutputEverySituation {
		t.Error("TerrainOutputEverySituation should be set")
	}
}

func TestRunConfigExpandEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("WINDFIELD_TEST_DIR", dir)
	cfg := testConfig(dir)
	cfg.Set("CoarseFiles", []string{"$WINDFIELD_TEST_DIR/a.ncf", "${WINDFIELD_TEST_DIR}/b.ncf"})
	cfg.Set("OutputFile", "$WINDFIELD_TEST_DIR/out_[SITUATION].ncf")
	cfg.Set("BuildingsFile", "$WINDFIELD_TEST_DIR/buildings.shp")
	c, err := RunConfigFromViper(cfg)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(dir, "a.ncf"), filepath.Join(dir, "b.ncf")}
	if diff := cmp.Diff(want, c.CoarseFiles); diff != "" {
		t.Errorf("coarse files (-want +got):\n%s", diff)
	}
	if c.OutputFile != filepath.Join(dir, "out_[SITUATION].ncf") {
		t.Errorf("output file: %s", c.OutputFile)
	}
	if c.BuildingsFile != filepath.Join(dir, "buildings.shp") {
		t.Errorf("buildings file: %s", c.BuildingsFile)
	}
}

func TestRunConfigErrors(t *testing.T) {
	for _, test := range []struct {
		name, variable string
		value          interface{}
		err            string
	}{
		{"dx", "Grid.Dx", 0.0, "parsing grid configuration: Grid.Dx=0 but should be >0"},
		{"stretch", "Grid.Stretch", -1.0, "parsing grid configuration: Grid.Stretch=-1 but should be >0"},
		{"nz", "Grid.Nz", 0, "parsing grid configuration: Grid.Nz=0 but should be >0"},
		{"flow level", "FlowLevel", "fast", "invalid FlowLevel"},
		{"reference point", "SubDomain.ReferencePoint", []int{1, 2, 3}, "needs 2 values"},
		{"factor", "SubDomain.Factor", -2.0, "SubDomain.Factor=-2"},
		{"no coarse files", "CoarseFiles", []string{}, "at least one coarse grid file"},
		{"no output", "OutputFile", "", "output file configuration variable"},
		{"output dir", "OutputFile", "/does/not/exist/out.ncf", "directory doesn't exist"},
		{"log level", "LogLevel", "loud", "LogLevel"},
	} {
		t.Run(test.name, func(t *testing.T) {
			cfg := testConfig(t.TempDir())
			cfg.Set(test.variable, test.value)
			_, err := RunConfigFromViper(cfg)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), test.err) {
				t.Errorf("error %q should contain %q", err, test.err)
			}
		})
	}
}

func TestRunConfigSituationTag(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Set("OutputFile", filepath.Join(dir, "out.ncf"))
	if _, err := RunConfigFromViper(cfg); err != nil {
		t.Fatalf("a single situation does not need a tag: %v", err)
	}
	cfg.Set("CoarseFiles", []string{"a.ncf", "b.ncf"})
	_, err := RunConfigFromViper(cfg)
	if err == nil || !strings.Contains(err.Error(), "does not contain [SITUATION]") {
		t.Errorf("have error %v, want a missing tag error", err)
	}
}

func TestParseFlowLevel(t *testing.T) {
	for s, want := range map[string]windfield.FlowFieldLevel{
		"none":       windfield.NoBuildings,
		"Diagnostic": windfield.Diagnostic,
		"PROGNOSTIC": windfield.Prognostic,
	} {
		l, err := parseFlowLevel(s)
		if err != nil {
			t.Fatal(err)
		}
		if l != want {
			t.Errorf("%s: have %v, want %v", s, l, want)
		}
	}
}

func TestSituationFile(t *testing.T) {
	if f := situationFile("out/wind_[SITUATION].ncf", 0); f != "out/wind_1.ncf" {
		t.Errorf("have %s, want out/wind_1.ncf", f)
	}
	if f := situationFile("wind.ncf", 3); f != "wind.ncf" {
		t.Errorf("have %s, want wind.ncf", f)
	}
	if f := checkLogFile("", "out/wind_[SITUATION].ncf"); f != "out/wind_all.log" {
		t.Errorf("log file: have %s, want out/wind_all.log", f)
	}
	if f := checkLogFile("my.log", "out/wind.ncf"); f != "my.log" {
		t.Errorf("log file: have %s, want my.log", f)
	}
}

func TestToIntSliceE(t *testing.T) {
	for _, test := range []struct {
		in   interface{}
		want []int
	}{
		{"[1,2]", []int{1, 2}},
		{[]int{3, 4}, []int{3, 4}},
		{[]interface{}{int64(5), 6}, []int{5, 6}},
	} {
		have, err := toIntSliceE(test.in)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(test.want, have); diff != "" {
			t.Errorf("%#v (-want +got):\n%s", test.in, diff)
		}
	}
	if _, err := toIntSliceE("x"); err == nil {
		t.Error("expected an error")
	}
}
