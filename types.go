package goScrypt

import (
	"fmt"

	"github.com/MrEthical07/goScrypt/password"
)

// Params are normalized scrypt cost parameters: LogN is log2(N), R the block
// size, P the parallelism.
type Params = password.Params

// CostFromN converts a raw cost N to the log2 exponent used everywhere else in
// this package. Non powers of two round down: CostFromN(40000) == 15.
func CostFromN(n uint64) (uint8, error) {
	logN, err := password.LogNFromN(n)
	if err != nil {
		return 0, classifyKDFError(err)
	}
	return logN, nil
}

// HashRequest is a hash call after option resolution.
type HashRequest struct {
	Password      []byte
	Salt          []byte
	SaltGenerated bool
	Params        Params
	OutputLength  uint32
}

// RawHash is the raw mode result.
type RawHash struct {
	// Hex is the lowercase hex encoding of OutputLength derived key bytes.
	Hex           string
	Salt          []byte
	SaltGenerated bool
	Params        Params
	OutputLength  uint32
}

func (h *RawHash) String() string {
	if h == nil {
		return ""
	}
	return h.Hex
}

// HashOption customizes a single hash call. Unset options fall back to
// Config.Defaults.
type HashOption func(*hashOptions)

type hashOptions struct {
	logN    uint8
	logNSet bool
	n       uint64
	nSet    bool
	r       uint32
	rSet    bool
	p       uint32
	pSet    bool
	outLen  uint32
	outSet  bool
	salt    []byte
	saltSet bool
	// saltText marks a salt given as text; encoded mode treats it as B64.
	saltText bool
}

// WithLogN sets the cost as a log2 exponent: WithLogN(15) means N = 32768.
func WithLogN(logN uint8) HashOption {
	return func(o *hashOptions) {
		o.logN = logN
		o.logNSet = true
	}
}

// WithN sets the cost as a raw N. It is converted with floor(log2(N)), so
// WithN(32768) and WithN(40000) both select ln=15. It cannot be combined with
// WithLogN.
func WithN(n uint64) HashOption {
	return func(o *hashOptions) {
		o.n = n
		o.nSet = true
	}
}

// WithBlockSize sets r.
func WithBlockSize(r uint32) HashOption {
	return func(o *hashOptions) {
		o.r = r
		o.rSet = true
	}
}

// WithParallelism sets p.
func WithParallelism(p uint32) HashOption {
	return func(o *hashOptions) {
		o.p = p
		o.pSet = true
	}
}

// WithParams sets ln, r, and p at once.
func WithParams(p Params) HashOption {
	return func(o *hashOptions) {
		WithLogN(p.LogN)(o)
		WithBlockSize(p.R)(o)
		WithParallelism(p.P)(o)
	}
}

// WithOutputLength sets the derived key length in bytes.
func WithOutputLength(n uint32) HashOption {
	return func(o *hashOptions) {
		o.outLen = n
		o.outSet = true
	}
}

// WithSalt supplies salt bytes. Raw mode uses them verbatim; encoded mode
// embeds their B64 form, which must be 4..64 characters.
func WithSalt(salt []byte) HashOption {
	return func(o *hashOptions) {
		o.salt = append([]byte(nil), salt...)
		o.saltSet = true
		o.saltText = false
	}
}

// WithSaltString supplies a salt as text. Raw mode uses its bytes verbatim;
// encoded mode requires valid B64 of 4..64 characters.
func WithSaltString(salt string) HashOption {
	return func(o *hashOptions) {
		o.salt = []byte(salt)
		o.saltSet = true
		o.saltText = true
	}
}

func collectOptions(opts []HashOption) hashOptions {
	var o hashOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// params resolves the cost triple against defaults.
func (o hashOptions) params(d DefaultsConfig) (Params, error) {
	p := Params{LogN: d.LogN, R: d.BlockSize, P: d.Parallelism}

	switch {
	case o.logNSet && o.nSet:
		return p, fmt.Errorf("%w: cost given both as N and as ln", ErrInvalidParameters)
	case o.nSet:
		logN, err := CostFromN(o.n)
		if err != nil {
			return p, err
		}
		p.LogN = logN
	case o.logNSet:
		p.LogN = o.logN
	}

	if o.rSet {
		p.R = o.r
	}
	if o.pSet {
		p.P = o.p
	}

	return p, nil
}
