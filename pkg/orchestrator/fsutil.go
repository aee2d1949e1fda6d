// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import "os"

func statPath(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

func readFileOrEmpty(path string) ([]byte, error) {
	return os.ReadFile(path)
}
