// Copyright © 2025 Kaleido, Inc.
//
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package confutil

import (
	"math"
	"time"

	"github.com/docker/go-units"
)

func Int(iVal *int, def int) int {
	if iVal == nil {
		return def
	}
	return *iVal
}

func IntMin(iVal *int, min int, def int) int {
	if iVal == nil || *iVal < min {
		return def
	}
	return *iVal
}

func Int64(iVal *int64, def int64) int64 {
	if iVal == nil {
		return def
	}
	return *iVal
}

func Int64Min(iVal *int64, min int64, def int64) int64 {
	if iVal == nil || *iVal < min {
		return def
	}
	return *iVal
}

func Float64Min(fVal *float64, min float64, def float64) float64 {
	if fVal == nil || *fVal < min {
		return def
	}
	return *fVal
}

func Bool(bVal *bool, def bool) bool {
	if bVal == nil {
		return def
	}
	return *bVal
}

func StringNotEmpty(sVal *string, def string) string {
	if sVal == nil || *sVal == "" {
		return def
	}
	return *sVal
}

func StringOrEmpty(sVal *string, def string) string {
	if sVal == nil {
		return def
	}
	return *sVal
}

func StringSlice(sVal []string, def []string) []string {
	if sVal == nil {
		return def
	}
	return sVal
}

func Duration(sVal *string, def time.Duration) time.Duration {
	var dVal *time.Duration
	if sVal != nil {
		d, err := time.ParseDuration(*sVal)
		if err == nil {
			dVal = &d
		}
	}
	if dVal == nil {
		return def
	}
	return *dVal
}

// DurationMin parses the supplied duration string, falling back to the default
// (which must itself parse) when unset, unparsable, or below the minimum.
func DurationMin(sVal *string, min time.Duration, def string) time.Duration {
	var dVal *time.Duration
	if sVal != nil {
		d, err := time.ParseDuration(*sVal)
		if err == nil && d >= min {
			dVal = &d
		}
	}
	if dVal == nil {
		d, _ := time.ParseDuration(def)
		return d
	}
	return *dVal
}

// DurationSeconds parses like DurationMin then rounds up to whole seconds.
func DurationSeconds(sVal *string, min time.Duration, def string) int64 {
	d := DurationMin(sVal, min, def)
	return (int64)(math.Ceil(d.Seconds()))
}

// ByteSize parses strings like "10Mb" or "1Gb" to a byte count, falling back to
// the default (which must itself parse) when unset, unparsable, or below the minimum.
func ByteSize(sVal *string, min int64, def string) int64 {
	var bVal *int64
	if sVal != nil {
		b, err := units.RAMInBytes(*sVal)
		if err == nil && b >= min {
			bVal = &b
		}
	}
	if bVal == nil {
		b, _ := units.RAMInBytes(def)
		return b
	}
	return *bVal
}

func P[T any](v T) *T {
	return &v
}
