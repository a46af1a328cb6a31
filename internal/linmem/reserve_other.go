//go:build !unix

package linmem

func reserve(size int) ([]byte, func() error, error) {
	data := make([]byte, size)
	return data, func() error { return nil }, nil
}
