// Package anchorstore manages the flat memory layout for a bounded
// population of numbered records ("anchors"), each held in a fixed size
// slot, plus a transient persistent state snapshot used to bridge process
// restarts.
//
// The layout is strictly computable. Knowing only the header geometry
// (entry offset and entry size), the address of every slot is derived
// arithmetically from its record number, with no per record index
// structures.
//
//	------------------------------------------- <- address 0
//	Magic "IIC"                 3 bytes
//	Layout version              1 byte
//	Number of anchors           4 bytes
//	idRangeLo                   8 bytes
//	idRangeHi                   8 bytes
//	entrySize                   2 bytes
//	Salt                        32 bytes
//	firstEntryOffset            8 bytes
//	------------------------------------------- <- 66 bytes
//	migration fields + reserve
//	------------------------------------------- <- EntryOffset (131072)
//	entry 0 length              2 bytes
//	entry 0 encoded bytes       length bytes
//	unused slot remainder
//	------------------------------------------- <- EntryOffset + entrySize
//	... one slot per anchor ...
//	------------------------------------------- <- EntryOffset + n*entrySize
//	unallocated tail reserve
//
// The persistent state snapshot is framed with the "IIPS" magic and a
// little endian length, and written at the first address not yet assigned
// to a slot. It is overwritten by the next anchor allocation, so it is
// only valid across a single restart.
package anchorstore
