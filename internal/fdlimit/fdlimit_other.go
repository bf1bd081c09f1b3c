// Copyright (C) 2024 The PianoConnect Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

//go:build !unix

package fdlimit

// Raise is a no-op on platforms without POSIX rlimits.
func Raise() (uint64, error) {
	return 0, nil
}
