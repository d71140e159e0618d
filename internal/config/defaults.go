package config

const (
	defaultLogDir                  = "~/.local/share/scribe/logs"
	defaultWorkDir                 = "~/.cache/scribe/work"
	defaultModelsDir               = "~/.local/share/scribe/models"
	defaultSpeakerDB               = "~/.local/share/scribe/speakers.db"
	defaultAPIBind                 = "127.0.0.1:7488"
	defaultModel                   = "large-v3-turbo"
	defaultComputeType             = "auto"
	defaultBeamSize                = 5
	defaultVADThreshold            = 0.5
	defaultAutosaveSeconds         = 5
	minAutosaveSeconds             = 5
	defaultTimestampSeconds        = 60
	defaultSpeakerMatchThreshold   = 0.75
	defaultPythonLauncher          = "uvx"
	defaultTerminateGraceSeconds   = 3
	defaultPollIntervalMS          = 100
	defaultFFmpegBinary            = "ffmpeg"
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultLogMaxSizeMB            = 20
	defaultLogMaxBackups           = 5
	defaultLogMaxAgeDays           = 30
	defaultDiarizationPipeline     = "pyannote/speaker-diarization-3.1"
	defaultTranscriptionPythonDeps = "faster-whisper"
	defaultDiarizationPythonDeps   = "pyannote.audio"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:    defaultLogDir,
			WorkDir:   defaultWorkDir,
			ModelsDir: defaultModelsDir,
			SpeakerDB: defaultSpeakerDB,
			APIBind:   defaultAPIBind,
		},
		Transcription: Transcription{
			Model:                    defaultModel,
			ComputeType:              defaultComputeType,
			BeamSize:                 defaultBeamSize,
			WordTimestamps:           true,
			VADFilter:                true,
			VADThreshold:             defaultVADThreshold,
			AutoSave:                 true,
			AutosaveIntervalSeconds:  defaultAutosaveSeconds,
			Language:                 "auto",
			TimestampIntervalSeconds: defaultTimestampSeconds,
		},
		Diarization: Diarization{
			Speakers:              "none",
			Pipeline:              defaultDiarizationPipeline,
			SpeakerMatchThreshold: defaultSpeakerMatchThreshold,
		},
		Workers: Workers{
			PythonLauncher:        defaultPythonLauncher,
			TranscriptionDeps:     []string{defaultTranscriptionPythonDeps},
			DiarizationDeps:       []string{defaultDiarizationPythonDeps, "torchaudio", "soundfile"},
			TerminateGraceSeconds: defaultTerminateGraceSeconds,
			PollIntervalMS:        defaultPollIntervalMS,
		},
		Audio: Audio{
			FFmpegBinary: defaultFFmpegBinary,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
		},
	}
}
