package codec

import "github.com/ledmington/x86emu/internal/bitbuffer"

func bitbufferFromBytes(b []byte) *bitbuffer.BitBuffer {
	return bitbuffer.New(b)
}
