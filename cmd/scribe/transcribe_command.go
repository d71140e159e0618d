package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/fileutil"
	"scribe/internal/job"
	"scribe/internal/timecode"
)

type transcribeOptions struct {
	output       string
	format       string
	language     string
	model        string
	speakers     string
	overlap      bool
	timestamps   bool
	disfluencies bool
	pause        string
	start        string
	stop         string
	api          bool
}

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var opts transcribeOptions

	cmd := &cobra.Command{
		Use:   "transcribe <audio>...",
		Short: "Transcribe one or more audio files",
		Long: `Queue every audio file as a job and run the queue in the foreground.

Press Ctrl+C once to cancel the running job and continue with the next one,
twice to cancel everything that is left.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			reqs, err := buildRequests(cmd.ErrOrStderr(), cfg, opts, args)
			if err != nil {
				return err
			}
			queue := job.NewQueue()
			for _, req := range reqs {
				j, err := job.New(req)
				if err != nil {
					return fmt.Errorf("%s: %w", req.AudioPath, err)
				}
				if err := queue.Add(j); err != nil {
					return err
				}
			}
			return runQueue(cmd, ctx, queue, opts.api)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.output, "output", "o", "", "Output directory, or the output file when a single audio file is given")
	flags.StringVarP(&opts.format, "format", "f", "", "Transcript format: txt, html, or vtt (default from --output extension, else txt)")
	flags.StringVarP(&opts.language, "language", "l", "", "Language code, auto, or multilingual (default from config)")
	flags.StringVarP(&opts.model, "model", "m", "", "Recognition model (default from config)")
	flags.StringVarP(&opts.speakers, "speakers", "s", "", "Speaker detection: none, auto, or a fixed speaker count (default from config)")
	flags.BoolVar(&opts.overlap, "overlap", false, "Mark segments where speakers overlap")
	flags.BoolVar(&opts.timestamps, "timestamps", false, "Insert periodic timestamps into the transcript")
	flags.BoolVar(&opts.disfluencies, "disfluencies", false, "Keep filler words and hesitations")
	flags.StringVar(&opts.pause, "pause", "none", "Annotate pauses: none, 1, 2, or 3 (seconds)")
	flags.StringVar(&opts.start, "start", "", "Start transcribing at hh:mm:ss")
	flags.StringVar(&opts.stop, "stop", "", "Stop transcribing at hh:mm:ss")
	flags.BoolVar(&opts.api, "api", false, "Serve the status API on paths.api_bind while jobs run")
	return cmd
}

// buildRequests turns command-line arguments into job requests with distinct
// output paths that do not overwrite existing files. Renamed outputs are
// reported on warn.
func buildRequests(warn io.Writer, cfg *config.Config, opts transcribeOptions, inputs []string) ([]job.Request, error) {
	if len(inputs) == 0 {
		return nil, errors.New("at least one audio file is required")
	}
	outputFile := ""
	outputDir := strings.TrimSpace(opts.output)
	if outputDir != "" {
		expanded, err := config.ExpandPath(outputDir)
		if err != nil {
			return nil, fmt.Errorf("resolve output: %w", err)
		}
		outputDir = expanded
		if len(inputs) == 1 && filepath.Ext(outputDir) != "" {
			outputFile, outputDir = outputDir, ""
		}
	}

	format := job.FormatText
	switch {
	case strings.TrimSpace(opts.format) != "":
		parsed, err := job.ParseFormat(opts.format)
		if err != nil {
			return nil, err
		}
		format = parsed
	case outputFile != "":
		parsed, err := job.ParseFormat(filepath.Ext(outputFile))
		if err != nil {
			return nil, err
		}
		format = parsed
	}

	langValue := opts.language
	if strings.TrimSpace(langValue) == "" {
		langValue = cfg.Transcription.Language
	}
	lang, err := job.ParseLanguage(langValue)
	if err != nil {
		return nil, err
	}
	speakers := opts.speakers
	if strings.TrimSpace(speakers) == "" {
		speakers = cfg.Diarization.Speakers
	}
	diar, err := job.ParseDiarization(speakers)
	if err != nil {
		return nil, err
	}
	pause, err := job.ParsePauseTier(opts.pause)
	if err != nil {
		return nil, err
	}
	startMS, err := parseOptionalTime(opts.start)
	if err != nil {
		return nil, fmt.Errorf("--start: %w", err)
	}
	stopMS, err := parseOptionalTime(opts.stop)
	if err != nil {
		return nil, fmt.Errorf("--stop: %w", err)
	}

	audioPaths := make([]string, 0, len(inputs))
	outputs := make([]string, 0, len(inputs))
	for _, input := range inputs {
		audioPath, err := config.ExpandPath(input)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", input, err)
		}
		audioPaths = append(audioPaths, audioPath)
		if outputFile != "" {
			outputs = append(outputs, outputFile)
			continue
		}
		dir := outputDir
		if dir == "" {
			dir = filepath.Dir(audioPath)
		}
		base := filepath.Base(audioPath)
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		outputs = append(outputs, filepath.Join(dir, stem+format.Extension()))
	}
	unique := fileutil.UniquePaths(outputs)

	reqs := make([]job.Request, 0, len(inputs))
	for i, audioPath := range audioPaths {
		if unique[i] != outputs[i] {
			fmt.Fprintf(warn, "warn: %s already taken, writing %s instead\n", outputs[i], unique[i])
		}
		reqs = append(reqs, job.Request{
			AudioPath:    audioPath,
			OutputPath:   unique[i],
			Format:       format,
			StartMS:      startMS,
			StopMS:       stopMS,
			Language:     lang,
			Model:        opts.model,
			Diarization:  diar,
			MarkOverlap:  opts.overlap,
			Timestamps:   opts.timestamps,
			Disfluencies: opts.disfluencies,
			Pause:        pause,
		})
	}
	return reqs, nil
}

func parseOptionalTime(value string) (int64, error) {
	if strings.TrimSpace(value) == "" {
		return 0, nil
	}
	return timecode.Parse(value)
}
