//go:build sherpa

package sherpa

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	onnx "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"

	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/segment"
)

// Enabled reports whether sherpa-onnx is linked into this binary.
const Enabled = true

// vadBufferSeconds sizes the detector's internal ring buffer.
const vadBufferSeconds = 60

// SileroVAD builds streaming Silero detectors sharing one configuration.
type SileroVAD struct {
	cfg    onnx.VadModelConfig
	rate   int
	window int
}

// NewSileroVAD checks that the model loads on provider.
func NewSileroVAD(cfg config.SileroVAD, provider string) (*SileroVAD, error) {
	s := &SileroVAD{
		cfg: onnx.VadModelConfig{
			SileroVad: onnx.SileroVadModelConfig{
				Model:              cfg.Model,
				Threshold:          float32(cfg.Threshold),
				MinSilenceDuration: float32(cfg.MinSilenceDuration),
				MinSpeechDuration:  float32(cfg.MinSpeechDuration),
				MaxSpeechDuration:  float32(cfg.MaxSpeechDuration),
				WindowSize:         cfg.WindowSize,
			},
			SampleRate: cfg.SampleRate,
			NumThreads: cfg.NumThreads,
			Provider:   provider,
		},
		rate:   cfg.SampleRate,
		window: cfg.WindowSize,
	}
	probe := onnx.NewVoiceActivityDetector(&s.cfg, vadBufferSeconds)
	if probe == nil {
		return nil, fmt.Errorf("load silero vad %q on %s", cfg.Model, provider)
	}
	onnx.DeleteVoiceActivityDetector(probe)
	return s, nil
}

// SampleRate is the rate detectors expect.
func (s *SileroVAD) SampleRate() int { return s.rate }

// NewDetector opens a streaming detector. Callers must Close it.
func (s *SileroVAD) NewDetector() *Detector {
	return &Detector{
		vad:    onnx.NewVoiceActivityDetector(&s.cfg, vadBufferSeconds),
		rate:   s.rate,
		window: s.window,
	}
}

// Close is a no-op; each detector owns its native handle.
func (s *SileroVAD) Close() error { return nil }

// Detector is one Silero stream.
type Detector struct {
	vad     *onnx.VoiceActivityDetector
	rate    int
	window  int
	pending []float32
	skipped int
	paused  bool
}

// Accept feeds whole windows and drains finished speech segments.
func (d *Detector) Accept(samples []float32) []segment.Event {
	if d.paused {
		d.skipped += len(samples)
		return nil
	}
	d.pending = append(d.pending, samples...)
	n := len(d.pending) / d.window * d.window
	for offset := 0; offset < n; offset += d.window {
		d.vad.AcceptWaveform(d.pending[offset : offset+d.window])
	}
	d.pending = append(d.pending[:0], d.pending[n:]...)
	return d.drain()
}

// Flush closes any open segment.
func (d *Detector) Flush() []segment.Event {
	if len(d.pending) > 0 && !d.paused {
		d.vad.AcceptWaveform(d.pending)
		d.pending = d.pending[:0]
	}
	d.vad.Flush()
	return d.drain()
}

// Pause flushes then emits PAUSE.
func (d *Detector) Pause() []segment.Event {
	if d.paused {
		return nil
	}
	events := d.Flush()
	d.paused = true
	return append(events, segment.Pause())
}

// Resume emits RESUME.
func (d *Detector) Resume() []segment.Event {
	if !d.paused {
		return nil
	}
	d.paused = false
	return []segment.Event{segment.Resume()}
}

// Paused reports whether input is being dropped.
func (d *Detector) Paused() bool { return d.paused }

// Close frees the native detector.
func (d *Detector) Close() error {
	if d.vad != nil {
		onnx.DeleteVoiceActivityDetector(d.vad)
		d.vad = nil
	}
	return nil
}

func (d *Detector) drain() []segment.Event {
	var events []segment.Event
	for !d.vad.IsEmpty() {
		seg := d.vad.Front()
		start := float64(seg.Start+d.skipped) / float64(d.rate)
		samples := append([]float32(nil), seg.Samples...)
		events = append(events, segment.Span(start, start+float64(len(samples))/float64(d.rate), samples, d.rate))
		d.vad.Pop()
	}
	return events
}

// Recognizer is an offline recognizer; each call decodes on a fresh stream.
type Recognizer struct {
	recognizer *onnx.OfflineRecognizer
}

// NewRecognizer loads the model family selected by cfg.ModelType.
func NewRecognizer(cfg config.SherpaOnnxASR, provider string) (*Recognizer, error) {
	rc := onnx.OfflineRecognizerConfig{}
	rc.FeatConfig = onnx.FeatureConfig{SampleRate: 16000, FeatureDim: 80}
	rc.ModelConfig.Tokens = cfg.Tokens
	rc.ModelConfig.NumThreads = cfg.NumThreads
	rc.ModelConfig.Provider = provider
	rc.DecodingMethod = cfg.DecodingMethod

	switch cfg.ModelType {
	case config.ModelTransducer:
		rc.ModelConfig.Transducer = onnx.OfflineTransducerModelConfig{
			Encoder: cfg.Encoder,
			Decoder: cfg.Decoder,
			Joiner:  cfg.Joiner,
		}
	case config.ModelParaformer:
		rc.ModelConfig.Paraformer = onnx.OfflineParaformerModelConfig{Model: cfg.Paraformer}
	case config.ModelNemoCTC:
		rc.ModelConfig.NemoCTC = onnx.OfflineNemoEncDecCtcModelConfig{Model: cfg.NemoCTC}
	case config.ModelWhisper:
		rc.ModelConfig.Whisper = onnx.OfflineWhisperModelConfig{
			Encoder:  cfg.WhisperEncoder,
			Decoder:  cfg.WhisperDecoder,
			Language: cfg.Language,
			Task:     "transcribe",
		}
	case config.ModelTDNNCTC:
		rc.ModelConfig.Tdnn = onnx.OfflineTdnnModelConfig{Model: cfg.TDNNModel}
		rc.FeatConfig.FeatureDim = 23
		rc.FeatConfig.SampleRate = 8000
	case config.ModelSenseVoice:
		useITN := 0
		if cfg.UseITN {
			useITN = 1
		}
		rc.ModelConfig.SenseVoice = onnx.OfflineSenseVoiceModelConfig{
			Model:                       cfg.SenseVoice,
			Language:                    cfg.Language,
			UseInverseTextNormalization: useITN,
		}
	default:
		return nil, fmt.Errorf("unsupported sherpa-onnx model_type %q", cfg.ModelType)
	}

	recognizer := onnx.NewOfflineRecognizer(&rc)
	if recognizer == nil {
		return nil, fmt.Errorf("load sherpa-onnx %s recognizer on %s", cfg.ModelType, provider)
	}
	return &Recognizer{recognizer: recognizer}, nil
}

// Transcribe decodes one isolated segment.
func (r *Recognizer) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	stream := onnx.NewOfflineStream(r.recognizer)
	defer onnx.DeleteOfflineStream(stream)

	stream.AcceptWaveform(sampleRate, samples)
	r.recognizer.Decode(stream)
	return strings.TrimSpace(stream.GetResult().Text), nil
}

// Close frees the native recognizer.
func (r *Recognizer) Close() error {
	if r.recognizer != nil {
		onnx.DeleteOfflineRecognizer(r.recognizer)
		r.recognizer = nil
	}
	return nil
}

// Diarizer runs pyannote segmentation plus embedding clustering.
type Diarizer struct {
	sd     *onnx.OfflineSpeakerDiarization
	logger *slog.Logger
}

// NewDiarizer loads both diarization models. Progress on long inputs is
// logged to logger at debug.
func NewDiarizer(cfg config.Pyannote, provider string, logger *slog.Logger) (*Diarizer, error) {
	dc := onnx.OfflineSpeakerDiarizationConfig{
		Segmentation: onnx.OfflineSpeakerSegmentationModelConfig{
			Pyannote:   onnx.OfflineSpeakerSegmentationPyannoteModelConfig{Model: cfg.SegmentationModel},
			NumThreads: cfg.NumThreads,
			Provider:   provider,
		},
		Embedding: onnx.SpeakerEmbeddingExtractorConfig{
			Model:      cfg.EmbeddingModel,
			NumThreads: cfg.NumThreads,
			Provider:   provider,
		},
		Clustering: onnx.FastClusteringConfig{
			NumClusters: cfg.NumSpeakers,
			Threshold:   float32(cfg.ClusterThreshold),
		},
		MinDurationOn:  float32(cfg.MinDurationOn),
		MinDurationOff: float32(cfg.MinDurationOff),
	}
	sd := onnx.NewOfflineSpeakerDiarization(&dc)
	if sd == nil {
		return nil, fmt.Errorf("load speaker diarization models on %s", provider)
	}
	return &Diarizer{sd: sd, logger: logger}, nil
}

// SampleRate is the rate Diarize expects.
func (d *Diarizer) SampleRate() int { return d.sd.SampleRate() }

// Diarize returns speaker regions in backend order.
func (d *Diarizer) Diarize(ctx context.Context, samples []float32) ([]segment.Diarized, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stop := reportProgress(d.logger, progressInterval, "speaker diarization",
		float64(len(samples))/float64(d.sd.SampleRate()))
	raw := d.sd.Process(samples)
	stop()
	out := make([]segment.Diarized, 0, len(raw))
	for _, s := range raw {
		out = append(out, segment.Diarized{Speaker: s.Speaker, Start: float64(s.Start), End: float64(s.End)})
	}
	return out, nil
}

// Close frees the native pipeline.
func (d *Diarizer) Close() error {
	if d.sd != nil {
		onnx.DeleteOfflineSpeakerDiarization(d.sd)
		d.sd = nil
	}
	return nil
}
