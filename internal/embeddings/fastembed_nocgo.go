//go:build !cgo

package embeddings

func newLocalProvider(LocalConfig) (Provider, error) {
	return nil, ErrLocalUnavailable
}
