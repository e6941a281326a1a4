package eventlog

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/cathedral-fabric/fabric/core/chash"
	"github.com/cathedral-fabric/fabric/core/codec"
	"github.com/cathedral-fabric/fabric/core/ferrors"
	"github.com/cathedral-fabric/fabric/core/ids"
)

// fileMagic is the event log file header magic (spec.md §6).
var fileMagic = [4]byte{'C', 'F', 'L', 'G'}

// WriteFile serializes a Log to w in the framed file format spec.md §6
// defines: a header `{magic="CFLG", format_version, run_id}` followed
// by one frame per event: `[len:u32-be | canonical-event-bytes |
// event-hash:32 | link-hash:32]`.
func WriteFile(w io.Writer, runID ids.RunId, events []Event) error {
	header := make([]byte, 0, 4+1+16)
	header = append(header, fileMagic[:]...)
	header = append(header, codec.FormatVersion)
	header = append(header, runID.Bytes()...)
	if _, err := w.Write(header); err != nil {
		return ferrors.Wrap(ferrors.KindInternal, "eventlog.WriteFile", err)
	}

	chain := NewHashChain()
	for _, ev := range events {
		encoded, err := ev.Encode()
		if err != nil {
			return err
		}
		eventHash := chash.Compute(encoded)
		link := chain.Push(eventHash)

		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(encoded)))
		if _, err := w.Write(lenBuf[:]); err != nil {
			return ferrors.Wrap(ferrors.KindInternal, "eventlog.WriteFile", err)
		}
		if _, err := w.Write(encoded); err != nil {
			return ferrors.Wrap(ferrors.KindInternal, "eventlog.WriteFile", err)
		}
		if _, err := w.Write(link.EventHash.Digest[:]); err != nil {
			return ferrors.Wrap(ferrors.KindInternal, "eventlog.WriteFile", err)
		}
		if _, err := w.Write(link.LinkHash.Digest[:]); err != nil {
			return ferrors.Wrap(ferrors.KindInternal, "eventlog.WriteFile", err)
		}
	}
	return nil
}

// ReadFile parses a file produced by WriteFile. Truncation is detected
// by validating each frame's link hash against the running chain as
// frames are read; a mismatch or an incomplete trailing frame both
// fail BrokenChain.
func ReadFile(r io.Reader) (ids.RunId, []Event, error) {
	header := make([]byte, 4+1+16)
	if _, err := io.ReadFull(r, header); err != nil {
		return ids.RunId{}, nil, ferrors.Wrap(ferrors.KindInvalidEncoding, "eventlog.ReadFile", err)
	}
	if string(header[:4]) != string(fileMagic[:]) {
		return ids.RunId{}, nil, ferrors.Wrap(ferrors.KindInvalidEncoding, "eventlog.ReadFile",
			errors.New("bad magic"))
	}
	version := header[4]
	if version != codec.FormatVersion {
		return ids.RunId{}, nil, ferrors.Wrap(ferrors.KindInvalidEncoding, "eventlog.ReadFile",
			errors.Errorf("unsupported format version %d", version))
	}
	var runIDBytes [16]byte
	copy(runIDBytes[:], header[5:21])
	runID := ids.RunId(ids.ID(runIDBytes))

	var events []Event
	chain := NewHashChain()
	for {
		var lenBuf [4]byte
		_, err := io.ReadFull(r, lenBuf[:])
		if err == io.EOF {
			break
		}
		if err != nil {
			return ids.RunId{}, nil, ferrors.Wrap(ferrors.KindBrokenChain, "eventlog.ReadFile", err)
		}
		frameLen := binary.BigEndian.Uint32(lenBuf[:])
		encoded := make([]byte, frameLen)
		if _, err := io.ReadFull(r, encoded); err != nil {
			return ids.RunId{}, nil, ferrors.Wrap(ferrors.KindBrokenChain, "eventlog.ReadFile", err)
		}
		var eventHashBytes, linkHashBytes [32]byte
		if _, err := io.ReadFull(r, eventHashBytes[:]); err != nil {
			return ids.RunId{}, nil, ferrors.Wrap(ferrors.KindBrokenChain, "eventlog.ReadFile", err)
		}
		if _, err := io.ReadFull(r, linkHashBytes[:]); err != nil {
			return ids.RunId{}, nil, ferrors.Wrap(ferrors.KindBrokenChain, "eventlog.ReadFile", err)
		}

		ev, err := Decode(encoded)
		if err != nil {
			return ids.RunId{}, nil, err
		}

		eventHash := chash.Compute(encoded)
		if eventHash.Digest != eventHashBytes {
			return ids.RunId{}, nil, ferrors.New(ferrors.KindHashMismatch, "eventlog.ReadFile")
		}
		link := chain.Push(eventHash)
		if link.LinkHash.Digest != linkHashBytes {
			return ids.RunId{}, nil, &ChainError{Position: len(events)}
		}
		events = append(events, ev)
	}
	return runID, events, nil
}
