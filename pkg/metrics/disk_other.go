//go:build !unix

package metrics

import "errors"

func DiskUsedPercent(path string) (float64, error) {
	return 0, errors.New("disk usage not supported on this platform")
}
