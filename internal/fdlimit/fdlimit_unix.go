// Copyright (C) 2024 The PianoConnect Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

//go:build unix

// Package fdlimit raises the process's open-file-descriptor limit at
// startup.
package fdlimit

import "golang.org/x/sys/unix"

// Raise sets RLIMIT_NOFILE to its hard ceiling and returns the new soft
// limit. It is best-effort: a failure to raise the limit is not fatal,
// the relay simply runs with whatever the environment already allows.
func Raise() (uint64, error) {
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
		return 0, err
	}
	if rlim.Cur >= rlim.Max {
		return rlim.Cur, nil
	}
	rlim.Cur = rlim.Max
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
		return 0, err
	}
	return rlim.Cur, nil
}
