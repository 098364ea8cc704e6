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
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.*/

// Package hash creates keys that identify the inputs of a weather
// situation, so that unchanged inputs are not reloaded.
package hash

import (
	"fmt"
	"hash/fnv"

	"github.com/davecgh/go-spew/spew"
)

var printer = spew.ConfigState{
	Indent:                  " ",
	SortKeys:                true,
	DisableMethods:          true,
	SpewKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

// Key returns a key for the given values. Equal values give equal keys;
// NaN values and maps are handled, which gob encoding cannot do
// reliably.
func Key(values ...interface{}) string {
	h := fnv.New128a()
	for _, v := range values {
		printer.Fprintf(h, "%#v\n", v)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
