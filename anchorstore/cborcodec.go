package anchorstore

import (
	"github.com/datatrails/go-datatrails-common/cbor"
)

// NewCBORCodec returns the codec used for persistent state snapshots.
func NewCBORCodec() (cbor.CBORCodec, error) {
	codec, err := cbor.NewCBORCodec(
		cbor.NewDeterministicEncOpts(),
		cbor.NewDeterministicDecOpts(), // unsigned int decodes to uint64
	)
	if err != nil {
		return cbor.CBORCodec{}, err
	}
	return codec, nil
}
