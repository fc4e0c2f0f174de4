// SPDX-License-Identifier: MIT
// Copyright (c) 2024 L. D. T. d.o.o.
// Copyright (c) contributors for their respective contributions. See https://github.com/l-d-t/fiskalhrgo/graphs/contributors

package tizensig

import (
	"os"
	"path/filepath"
)

// IsFileReadable checks if the given file exists and is readable.
// It returns true if the file exists and is readable, otherwise false.
func IsFileReadable(filePath string) bool {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return false
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return false
	}

	if !info.Mode().IsRegular() {
		return false
	}

	file, err := os.Open(absPath)
	if err != nil {
		return false
	}
	defer file.Close()

	return true
}
