package anchorstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		rangeLo uint64
		rangeHi uint64
	}{
		{"empty range", 0, 0},
		{"small range", 10, 20},
		{"offset range", 10_000, 3_000_000},
		{"max range", 7, 7 + DefaultRangeSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header, err := NewHeader(tt.rangeLo, tt.rangeHi)
			require.NoError(t, err)
			assert.Equal(t, LayoutVersionCurrent, header.Version)
			assert.Equal(t, uint32(0), header.AnchorCount)

			encoded, err := header.MarshalBinary()
			require.NoError(t, err)
			require.Len(t, encoded, HeaderSize)

			got := Header{}
			require.NoError(t, got.UnmarshalBinary(encoded))
			assert.Equal(t, header, got)
		})
	}
}

func TestHeaderByteLayout(t *testing.T) {
	// The byte positions asserted here are the cross version storage
	// contract, they can never move.
	header, err := NewHeader(10, 20)
	require.NoError(t, err)
	header.AnchorCount = 3
	header.Salt[0] = 0x5a

	b := EncodeHeader(&header)
	require.Len(t, b, 74)

	assert.Equal(t, []byte("IIC"), b[0:3])
	assert.Equal(t, uint8(5), b[3])
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(b[4:8]))
	assert.Equal(t, uint64(10), binary.LittleEndian.Uint64(b[8:16]))
	assert.Equal(t, uint64(20), binary.LittleEndian.Uint64(b[16:24]))
	assert.Equal(t, uint16(4096), binary.LittleEndian.Uint16(b[24:26]))
	assert.Equal(t, uint8(0x5a), b[26])
	assert.Equal(t, uint64(131072), binary.LittleEndian.Uint64(b[58:66]))
}

func TestNewHeaderRejectsImproperRange(t *testing.T) {
	_, err := NewHeader(20, 10)
	assert.True(t, errors.Is(err, ErrAnchorRangeInvalid))

	_, err = NewHeader(0, DefaultRangeSize+1)
	assert.True(t, errors.Is(err, ErrAnchorRangeTooLarge))

	_, err = NewHeader(0, DefaultRangeSize)
	assert.NoError(t, err)
}

func TestDecodeHeaderBadMagic(t *testing.T) {
	header, err := NewHeader(10, 20)
	require.NoError(t, err)
	// a corrupt magic is reported as such regardless of what the version
	// byte happens to contain
	for _, version := range []uint8{0, 2, 4, 9, 255} {
		t.Run(fmt.Sprintf("version %d", version), func(t *testing.T) {
			b := EncodeHeader(&header)
			b[0] = 'X'
			b[HeaderVersionFirstByte] = version
			got := Header{}
			assert.True(t, errors.Is(DecodeHeader(&got, b), ErrHeaderBadMagic))
		})
	}
}

func TestDecodeHeaderVersionBounds(t *testing.T) {
	tests := []struct {
		version uint8
		want    error
	}{
		{0, ErrLayoutVersionTooOld},
		{1, ErrLayoutVersionTooOld},
		{2, ErrLayoutVersionTooOld},
		{3, nil},
		{4, nil},
		{5, nil},
		{6, ErrLayoutVersionUnknown},
		{255, ErrLayoutVersionUnknown},
	}
	header, err := NewHeader(10, 20)
	require.NoError(t, err)
	for _, tt := range tests {
		t.Run(fmt.Sprintf("version %d", tt.version), func(t *testing.T) {
			b := EncodeHeader(&header)
			b[HeaderVersionFirstByte] = tt.version
			got := Header{}
			err := DecodeHeader(&got, b)
			if tt.want == nil {
				require.NoError(t, err)
				assert.Equal(t, tt.version, got.Version)
				return
			}
			assert.True(t, errors.Is(err, tt.want))
		})
	}
}

func TestDecodeHeaderTooOldAndTooNewAreDistinct(t *testing.T) {
	header, err := NewHeader(10, 20)
	require.NoError(t, err)

	b := EncodeHeader(&header)
	b[HeaderVersionFirstByte] = 2
	tooOld := DecodeHeader(&Header{}, b)

	b = EncodeHeader(&header)
	b[HeaderVersionFirstByte] = 6
	tooNew := DecodeHeader(&Header{}, b)

	require.Error(t, tooOld)
	require.Error(t, tooNew)
	assert.NotEqual(t, tooOld.Error(), tooNew.Error())
	assert.False(t, errors.Is(tooOld, ErrLayoutVersionUnknown))
	assert.False(t, errors.Is(tooNew, ErrLayoutVersionTooOld))
}

func TestDecodeHeaderShortWindow(t *testing.T) {
	header, err := NewHeader(10, 20)
	require.NoError(t, err)
	b := EncodeHeader(&header)
	assert.True(t, errors.Is(DecodeHeader(&Header{}, b[:HeaderSize-1]), ErrHeaderTooShort))
}

func TestHeaderMigrationFieldsPreserved(t *testing.T) {
	header, err := NewHeader(10, 20)
	require.NoError(t, err)
	header.Version = 4
	header.NewLayoutStart = 7
	header.MigrationBatchSize = 100

	got := Header{}
	require.NoError(t, DecodeHeader(&got, EncodeHeader(&header)))
	assert.Equal(t, uint32(7), got.NewLayoutStart)
	assert.Equal(t, uint32(100), got.MigrationBatchSize)
}

func TestRecordAddress(t *testing.T) {
	header, err := NewHeader(10, 20)
	require.NoError(t, err)

	assert.Equal(t, uint64(131072), header.RecordAddress(0))
	assert.Equal(t, uint64(131072+5*4096), header.RecordAddress(5))
	assert.Equal(t, uint64(151552), header.RecordAddress(5))

	// strictly increasing in the record number
	prev := header.RecordAddress(0)
	for n := uint32(1); n < 100; n++ {
		addr := header.RecordAddress(n)
		require.Greater(t, addr, prev)
		prev = addr
	}
}

func TestRecordAddressFullRangeNoOverflow(t *testing.T) {
	header, err := NewHeader(0, DefaultRangeSize)
	require.NoError(t, err)
	last := header.RecordAddress(uint32(DefaultRangeSize))
	assert.Equal(t, EntryOffset+DefaultRangeSize*uint64(DefaultEntrySize), last)
	assert.LessOrEqual(t, last, StableMemorySize-StableMemoryReserve)
}

func TestEntrySizeLimit(t *testing.T) {
	header, err := NewHeader(10, 20)
	require.NoError(t, err)
	assert.Equal(t, 4094, header.EntrySizeLimit())
}

func TestUnusedMemoryStart(t *testing.T) {
	header, err := NewHeader(10, 20)
	require.NoError(t, err)
	assert.Equal(t, header.RecordAddress(0), header.UnusedMemoryStart())
	header.AnchorCount = 3
	assert.Equal(t, uint64(131072+3*4096), header.UnusedMemoryStart())
}
