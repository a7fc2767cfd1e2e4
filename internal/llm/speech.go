package llm

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// VoiceParams selects the synthesis voice and playback speed.
type VoiceParams struct {
	Voice string
	Speed float64
}

// Synthesizer renders text to audio and returns an opaque reference to
// the stored result. Callers treat failure as non-fatal: the text reply
// stands on its own.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, params VoiceParams) (string, error)
}

// OpenAISynthesizer implements Synthesizer against the speech API,
// writing audio files into a local directory. Durable audio storage is
// a separate concern layered on top of the returned reference.
type OpenAISynthesizer struct {
	api    *openai.Client
	model  openai.SpeechModel
	dir    string
	logger *zap.Logger
}

func NewOpenAISynthesizer(apiKey, dir string, logger *zap.Logger) *OpenAISynthesizer {
	return &OpenAISynthesizer{
		api:    openai.NewClient(apiKey),
		model:  openai.TTSModel1,
		dir:    dir,
		logger: logger,
	}
}

func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text string, params VoiceParams) (string, error) {
	voice := openai.SpeechVoice(params.Voice)
	if voice == "" {
		voice = openai.VoiceAlloy
	}
	speed := params.Speed
	if speed <= 0 {
		speed = 1.0
	}

	resp, err := s.api.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model: s.model,
		Input: text,
		Voice: voice,
		Speed: speed,
	})
	if err != nil {
		return "", fmt.Errorf("synthesize speech: %w", err)
	}
	defer resp.Close()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create audio dir: %w", err)
	}
	ref := uuid.New().String() + ".mp3"
	path := filepath.Join(s.dir, ref)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create audio file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write audio file: %w", err)
	}

	s.logger.Debug("synthesized voice reply", zap.String("ref", ref))
	return ref, nil
}
