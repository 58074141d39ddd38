package config

// DefaultEnergyVAD mirrors the Silero defaults: 512-sample frames at 16 kHz,
// 3 hits (~0.1s) to open a span and 24 misses (~0.8s) to close it.
func DefaultEnergyVAD() EnergyVAD {
	return EnergyVAD{
		SampleRate:      16000,
		FrameSize:       512,
		ProbThreshold:   0.4,
		DBThreshold:     60,
		RequiredHits:    3,
		RequiredMisses:  24,
		SmoothingWindow: 5,
	}
}

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Engine: Engine{
			MinSegmentDuration: 0.1,
			Segmentation: Segmentation{
				Variant: VariantEnergy,
				Energy:  DefaultEnergyVAD(),
				SileroVAD: SileroVAD{
					SampleRate:         16000,
					Threshold:          0.5,
					MinSilenceDuration: 0.5,
					MinSpeechDuration:  0.25,
					MaxSpeechDuration:  20,
					WindowSize:         512,
					NumThreads:         1,
				},
			},
			Transcription: Transcription{
				Variant: VariantOpenAI,
				SherpaOnnx: SherpaOnnxASR{
					DecodingMethod: "greedy_search",
					NumThreads:     4,
					UseITN:         true,
				},
				OpenAI: OpenAIASR{
					Model:          "whisper-1",
					TimeoutSeconds: 60,
					MaxConcurrency: 4,
				},
				GRPC: GRPCASR{
					Endpoint:       "127.0.0.1:50051",
					DialTimeoutMS:  3000,
					CallTimeoutMS:  30000,
					MaxConcurrency: 1,
				},
			},
			Diarization: Diarization{
				Variant: VariantGap,
				Pyannote: Pyannote{
					NumSpeakers:      -1,
					ClusterThreshold: 0.5,
					MinDurationOn:    0.3,
					MinDurationOff:   0.5,
					NumThreads:       1,
				},
				Gap: Gap{
					TurnGap:     1.5,
					NumSpeakers: 2,
					VAD:         DefaultEnergyVAD(),
				},
			},
		},
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
		Output: OutputConfig{
			Format:              "text",
			CapitalizeSentences: true,
		},
	}
}
