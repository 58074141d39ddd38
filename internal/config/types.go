// Package config resolves, parses, validates, and defaults parley configuration.
package config

// Config is the fully materialized runtime configuration used by parley.
type Config struct {
	Engine  Engine        `yaml:"engine"`
	Audio   AudioConfig   `yaml:"audio"`
	Output  OutputConfig  `yaml:"output"`
	Control ControlConfig `yaml:"control"`
}

// Engine is the configuration bundle governing backend construction.
//
// Every field is a comparable value so bundles compare with ==; a backend is
// rebuilt only when its sub-bundle changes.
type Engine struct {
	MinSegmentDuration float64       `yaml:"min_segment_duration"`
	Segmentation       Segmentation  `yaml:"segmentation"`
	Transcription      Transcription `yaml:"transcription"`
	Diarization        Diarization   `yaml:"diarization"`
}

// Variant names one concrete backend implementation of a capability.
type Variant string

const (
	VariantEnergy     Variant = "energy"
	VariantSileroVAD  Variant = "silero_vad"
	VariantSherpaOnnx Variant = "sherpa_onnx"
	VariantOpenAI     Variant = "openai"
	VariantGRPC       Variant = "grpc"
	VariantPyannote   Variant = "pyannote"
	VariantGap        Variant = "gap"
)

// Segmentation selects and parameterizes the voice-activity backend.
type Segmentation struct {
	Variant   Variant   `yaml:"variant"`
	Energy    EnergyVAD `yaml:"energy"`
	SileroVAD SileroVAD `yaml:"silero_vad"`
}

// EnergyVAD parameterizes the frame-energy hysteresis detector.
type EnergyVAD struct {
	SampleRate      int     `yaml:"sample_rate"`
	FrameSize       int     `yaml:"frame_size"`
	ProbThreshold   float64 `yaml:"prob_threshold"`
	DBThreshold     float64 `yaml:"db_threshold"`
	RequiredHits    int     `yaml:"required_hits"`
	RequiredMisses  int     `yaml:"required_misses"`
	SmoothingWindow int     `yaml:"smoothing_window"`
}

// SileroVAD parameterizes the sherpa-onnx Silero detector.
type SileroVAD struct {
	Model              string  `yaml:"model"`
	SampleRate         int     `yaml:"sample_rate"`
	Threshold          float64 `yaml:"threshold"`
	MinSilenceDuration float64 `yaml:"min_silence_duration"`
	MinSpeechDuration  float64 `yaml:"min_speech_duration"`
	MaxSpeechDuration  float64 `yaml:"max_speech_duration"`
	WindowSize         int     `yaml:"window_size"`
	NumThreads         int     `yaml:"num_threads"`
	Provider           string  `yaml:"provider"`
}

// Transcription selects and parameterizes the speech-to-text backend.
type Transcription struct {
	Variant    Variant       `yaml:"variant"`
	SherpaOnnx SherpaOnnxASR `yaml:"sherpa_onnx"`
	OpenAI     OpenAIASR     `yaml:"openai"`
	GRPC       GRPCASR       `yaml:"grpc"`
}

// ModelType names one sherpa-onnx offline model family.
type ModelType string

const (
	ModelTransducer ModelType = "transducer"
	ModelParaformer ModelType = "paraformer"
	ModelNemoCTC    ModelType = "nemo_ctc"
	ModelWhisper    ModelType = "whisper"
	ModelTDNNCTC    ModelType = "tdnn_ctc"
	ModelSenseVoice ModelType = "sense_voice"
)

// SherpaOnnxASR parameterizes the sherpa-onnx offline recognizer.
type SherpaOnnxASR struct {
	ModelType      ModelType `yaml:"model_type"`
	Encoder        string    `yaml:"encoder"`
	Decoder        string    `yaml:"decoder"`
	Joiner         string    `yaml:"joiner"`
	Paraformer     string    `yaml:"paraformer"`
	NemoCTC        string    `yaml:"nemo_ctc"`
	TDNNModel      string    `yaml:"tdnn_model"`
	WhisperEncoder string    `yaml:"whisper_encoder"`
	WhisperDecoder string    `yaml:"whisper_decoder"`
	SenseVoice     string    `yaml:"sense_voice"`
	Tokens         string    `yaml:"tokens"`
	Language       string    `yaml:"language"`
	DecodingMethod string    `yaml:"decoding_method"`
	NumThreads     int       `yaml:"num_threads"`
	UseITN         bool      `yaml:"use_itn"`
	Provider       string    `yaml:"provider"`
}

// OpenAIASR parameterizes the OpenAI-compatible transcription API.
type OpenAIASR struct {
	Model          string  `yaml:"model"`
	BaseURL        string  `yaml:"base_url"`
	APIKey         string  `yaml:"api_key"`
	Language       string  `yaml:"language"`
	Prompt         string  `yaml:"prompt"`
	TimeoutSeconds float64 `yaml:"timeout_seconds"`
	MaxConcurrency int     `yaml:"max_concurrency"`
}

// GRPCASR parameterizes the remote gRPC transcription server.
type GRPCASR struct {
	Endpoint       string `yaml:"endpoint"`
	Language       string `yaml:"language"`
	DialTimeoutMS  int    `yaml:"dial_timeout_ms"`
	CallTimeoutMS  int    `yaml:"call_timeout_ms"`
	MaxConcurrency int    `yaml:"max_concurrency"`
}

// Diarization selects and parameterizes the speaker-diarization backend.
type Diarization struct {
	Variant  Variant  `yaml:"variant"`
	Pyannote Pyannote `yaml:"pyannote"`
	Gap      Gap      `yaml:"gap"`
}

// Pyannote parameterizes sherpa-onnx offline speaker diarization.
type Pyannote struct {
	SegmentationModel string  `yaml:"segmentation_model"`
	EmbeddingModel    string  `yaml:"embedding_model"`
	NumSpeakers       int     `yaml:"num_speakers"`
	ClusterThreshold  float64 `yaml:"cluster_threshold"`
	MinDurationOn     float64 `yaml:"min_duration_on"`
	MinDurationOff    float64 `yaml:"min_duration_off"`
	NumThreads        int     `yaml:"num_threads"`
	Provider          string  `yaml:"provider"`
}

// Gap parameterizes the turn-taking heuristic diarizer.
type Gap struct {
	TurnGap     float64   `yaml:"turn_gap"`
	NumSpeakers int       `yaml:"num_speakers"`
	VAD         EnergyVAD `yaml:"vad"`
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string `yaml:"input"`
	Fallback string `yaml:"fallback"`

	// Cues plays a short tone on every live-session state change.
	Cues bool `yaml:"cues"`
}

// OutputConfig controls transcript rendering.
type OutputConfig struct {
	Format              string `yaml:"format"`
	CapitalizeSentences bool   `yaml:"capitalize_sentences"`
}

// ControlConfig controls the live-session control socket.
type ControlConfig struct {
	SocketPath string `yaml:"socket_path"`
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
