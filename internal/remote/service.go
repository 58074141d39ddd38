// Package remote carries segment transcription over gRPC.
//
// Messages are google.protobuf.Struct values so no generated stubs are needed:
//
//	request:  {"audio_pcm16": base64 s16le, "sample_rate": n, "language": s}
//	response: {"text": s}
package remote

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rbright/parley/internal/fault"
	"github.com/rbright/parley/internal/segment"
	"github.com/rbright/parley/internal/wav"
)

const (
	serviceName      = "parley.v1.Transcription"
	transcribeMethod = "/" + serviceName + "/Transcribe"
)

// Handler transcribes one segment on the serving side.
type Handler interface {
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Handler)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Transcribe",
		Handler:    transcribeHandler,
	}},
	Streams:  []grpc.StreamDesc{},
	Metadata: "parley/v1/transcription.proto",
}

// Register exposes h on s.
func Register(s *grpc.Server, h Handler) {
	s.RegisterService(&serviceDesc, h)
}

func transcribeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	handle := func(ctx context.Context, req any) (any, error) {
		return serveTranscribe(ctx, srv.(Handler), req.(*structpb.Struct))
	}
	if interceptor == nil {
		return handle(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: transcribeMethod}
	return interceptor(ctx, in, info, handle)
}

func serveTranscribe(ctx context.Context, h Handler, req *structpb.Struct) (*structpb.Struct, error) {
	samples, sampleRate, err := decodeRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	text, err := h.Transcribe(ctx, samples, sampleRate)
	if err != nil {
		if ctx.Err() != nil {
			return nil, status.FromContextError(ctx.Err()).Err()
		}
		return nil, statusOf(err)
	}
	return structpb.NewStruct(map[string]any{"text": text})
}

var statusCodes = map[fault.Code]codes.Code{
	fault.CodeConfiguration:        codes.FailedPrecondition,
	fault.CodeModelNotFound:        codes.FailedPrecondition,
	fault.CodeNotInitialized:       codes.Unavailable,
	fault.CodeSampleRateMismatch:   codes.InvalidArgument,
	fault.CodeEmptyAudio:           codes.InvalidArgument,
	fault.CodeSegmentTranscription: codes.Internal,
	fault.CodeCancelled:            codes.Canceled,
	fault.CodeInvalidInput:         codes.InvalidArgument,
}

// statusOf maps err's category to a gRPC status. The message is the
// categorized one, so uncategorized failures do not leak their text.
func statusOf(err error) error {
	code, ok := statusCodes[fault.CodeOf(err)]
	if !ok {
		code = codes.Internal
	}
	return status.Error(code, fault.Message(err))
}

func encodeRequest(samples []float32, sampleRate int, language string) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"audio_pcm16": base64.StdEncoding.EncodeToString(wav.PCM16(samples)),
		"sample_rate": sampleRate,
		"language":    language,
	})
}

func decodeRequest(req *structpb.Struct) ([]float32, int, error) {
	fields := req.GetFields()
	sampleRate := int(fields["sample_rate"].GetNumberValue())
	if sampleRate <= 0 {
		return nil, 0, errors.New("sample_rate must be > 0")
	}
	pcm, err := base64.StdEncoding.DecodeString(fields["audio_pcm16"].GetStringValue())
	if err != nil {
		return nil, 0, fmt.Errorf("audio_pcm16 is not base64: %w", err)
	}
	return segment.FromPCM16LE(pcm), sampleRate, nil
}

// cleanText normalizes transcript whitespace.
func cleanText(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}
