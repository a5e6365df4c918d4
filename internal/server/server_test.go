package server_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/whispergo/internal/server"
	"github.com/example/whispergo/internal/testutil"
	"github.com/example/whispergo/internal/whisper"
)

var errTranscribeFailed = errors.New("transcribe failed")

type stubTranscriber struct {
	segs []whisper.Segment
	err  error
}

func (s *stubTranscriber) Transcribe(_ context.Context, _ []float32) ([]whisper.Segment, error) {
	if s.err != nil {
		return nil, s.err
	}

	return s.segs, nil
}

// minimalWAV returns a tiny but structurally valid 16kHz mono 16-bit PCM WAV.
func minimalWAV(t *testing.T) []byte {
	t.Helper()

	const sampleRate, numChannels, bitDepth, numSamples = 16000, 1, 16, 2
	blockAlign := numChannels * bitDepth / 8
	byteRate := sampleRate * uint32(blockAlign)
	dataSize := uint32(numSamples) * uint32(blockAlign)
	riffSize := 4 + (8 + 16) + (8 + dataSize)

	buf := &bytes.Buffer{}
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, riffSize)
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(buf, binary.LittleEndian, uint16(numChannels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, byteRate)
	_ = binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(bitDepth))

	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, dataSize)
	for range numSamples {
		_ = binary.Write(buf, binary.LittleEndian, int16(0))
	}

	data := buf.Bytes()
	testutil.AssertValidWAV(t, data)

	return data
}

func TestHealth_Returns200WithStatusOK(t *testing.T) {
	h := server.NewHandler(&stubTranscriber{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q; want ok", body["status"])
	}
}

func TestTranscribe_MissingBodyAs400(t *testing.T) {
	h := server.NewHandler(&stubTranscriber{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/transcribe", nil)
	req.Body = nil
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", rec.Code)
	}
}

func TestTranscribe_InvalidWAVAs400(t *testing.T) {
	h := server.NewHandler(&stubTranscriber{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/transcribe", bytes.NewBufferString("not a wav"))
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", rec.Code)
	}
}

func TestTranscribe_ReturnsSegmentsOnSuccess(t *testing.T) {
	h := server.NewHandler(&stubTranscriber{
		segs: []whisper.Segment{
			{T0: 0, T1: 150, Text: "hello"},
			{T0: 150, T1: 300, Text: "world"},
		},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/transcribe", bytes.NewReader(minimalWAV(t)))
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200, body=%s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Segments []struct {
			T0   float64 `json:"t0"`
			T1   float64 `json:"t1"`
			Text string  `json:"text"`
		} `json:"segments"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if len(resp.Segments) != 2 {
		t.Fatalf("segment count = %d; want 2", len(resp.Segments))
	}
	if resp.Segments[0].Text != "hello" || resp.Segments[0].T1 != 1.5 {
		t.Errorf("segment[0] = %+v; want T1=1.5 Text=hello", resp.Segments[0])
	}
}

func TestTranscribe_TranscriberErrorReturns500(t *testing.T) {
	h := server.NewHandler(&stubTranscriber{err: errTranscribeFailed})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/transcribe", bytes.NewReader(minimalWAV(t)))
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d; want 500", rec.Code)
	}
}

func TestTranscribe_MethodNotAllowed(t *testing.T) {
	h := server.NewHandler(&stubTranscriber{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/transcribe", nil)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d; want 405", rec.Code)
	}
}
