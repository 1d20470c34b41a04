// Package iq reads and writes interleaved I/Q recordings.
package iq

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tphakala/go-sdr-demod/internal/dsp"
)

// Format is a sample encoding.
type Format int

const (
	// CU8 is unsigned 8-bit I/Q offset by 128, as written by rtl_sdr.
	CU8 Format = iota
	// CS16 is signed 16-bit little-endian I/Q.
	CS16
)

// ParseFormat accepts "cu8" or "cs16" (also "u8" and "s16").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "cu8", "u8":
		return CU8, nil
	case "cs16", "s16":
		return CS16, nil
	default:
		return 0, fmt.Errorf("unknown IQ format %q", s)
	}
}

func (f Format) String() string {
	switch f {
	case CU8:
		return "cu8"
	case CS16:
		return "cs16"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// BytesPerSample returns the size of one complex sample.
func (f Format) BytesPerSample() int {
	if f == CS16 {
		return 4
	}
	return 2
}

const u8Offset = 128

// Reader decodes samples from an io.Reader.
type Reader struct {
	r      io.Reader
	format Format
	buf    []byte
}

// NewReader wraps r.
func NewReader(r io.Reader, format Format) *Reader {
	if r == nil {
		panic("iq: nil reader")
	}
	return &Reader{r: r, format: format}
}

// Read fills dst and returns the number of samples decoded. A short final
// read returns the samples it got and io.ErrUnexpectedEOF; a clean end of
// stream returns 0 and io.EOF.
func (rd *Reader) Read(dst dsp.SampleBlock) (int, error) {
	bps := rd.format.BytesPerSample()
	need := len(dst) * bps
	if cap(rd.buf) < need {
		rd.buf = make([]byte, need)
	}
	buf := rd.buf[:need]

	got, err := io.ReadFull(rd.r, buf)
	n := got / bps
	rd.decode(dst[:n], buf)
	return n, err
}

func (rd *Reader) decode(dst dsp.SampleBlock, buf []byte) {
	switch rd.format {
	case CU8:
		for i := range dst {
			dst[i] = dsp.Sample{
				Re: int16(int(buf[2*i])-u8Offset) << 8,
				Im: int16(int(buf[2*i+1])-u8Offset) << 8,
			}
		}
	case CS16:
		for i := range dst {
			dst[i] = dsp.Sample{
				Re: int16(binary.LittleEndian.Uint16(buf[4*i:])),
				Im: int16(binary.LittleEndian.Uint16(buf[4*i+2:])),
			}
		}
	}
}

// Stream reads blocks of batch samples on a goroutine until EOF, an error
// or ctx is done. The error, if any, is sent on the second channel after
// the block channel closes; io.EOF is not reported.
func (rd *Reader) Stream(ctx context.Context, batch int) (<-chan dsp.SampleBlock, <-chan error) {
	blocks := make(chan dsp.SampleBlock, 1)
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		defer close(blocks)
		for {
			block := make(dsp.SampleBlock, batch)
			n, err := rd.Read(block)
			if n > 0 {
				select {
				case blocks <- block[:n]:
				case <-ctx.Done():
					errc <- ctx.Err()
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
					errc <- err
				}
				return
			}
		}
	}()
	return blocks, errc
}

// Writer encodes samples to an io.Writer.
type Writer struct {
	w      io.Writer
	format Format
	buf    []byte
}

// NewWriter wraps w.
func NewWriter(w io.Writer, format Format) *Writer {
	return &Writer{w: w, format: format}
}

// Write encodes block. CU8 output keeps the top eight bits of each
// component.
func (wr *Writer) Write(block dsp.SampleBlock) error {
	need := len(block) * wr.format.BytesPerSample()
	if cap(wr.buf) < need {
		wr.buf = make([]byte, need)
	}
	buf := wr.buf[:need]

	switch wr.format {
	case CU8:
		for i, s := range block {
			buf[2*i] = byte(int(s.Re>>8) + u8Offset)
			buf[2*i+1] = byte(int(s.Im>>8) + u8Offset)
		}
	case CS16:
		for i, s := range block {
			binary.LittleEndian.PutUint16(buf[4*i:], uint16(s.Re))
			binary.LittleEndian.PutUint16(buf[4*i+2:], uint16(s.Im))
		}
	}
	_, err := wr.w.Write(buf)
	return err
}
