package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"lingotutor/app/client/speechkit"
	"lingotutor/app/config"

	"github.com/samber/do"
	"golang.org/x/sync/errgroup"
)

const bufferSize = 4096

// Service turns one uploaded audio clip into text and renders reply text
// back into audio. The recognizer and synthesizer are external engines
// reached through the speechkit client.
type Service struct {
	cfg          *config.Config
	speechClient *speechkit.YandexSpeechKit
}

func New(di *do.Injector) (*Service, error) {
	return &Service{
		cfg:          do.MustInvoke[*config.Config](di),
		speechClient: do.MustInvoke[*speechkit.YandexSpeechKit](di),
	}, nil
}

// Transcribe streams the clip into the recognizer and joins the final
// phrases into one utterance.
func (s *Service) Transcribe(ctx context.Context, audioSrc io.Reader) (string, error) {
	handle, err := s.speechClient.StartRecognition(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to start recognition: %w", err)
	}
	defer handle.Close()

	var phrases []string

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.streamAudio(ctx, audioSrc, handle)
	})

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			sentences, err := handle.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}

				return fmt.Errorf("Recv: %w", err)
			}

			phrases = append(phrases, sentences...)
		}
	})

	if err = g.Wait(); err != nil {
		return "", err
	}

	text := strings.TrimSpace(strings.Join(phrases, " "))
	if text == "" {
		return "", fmt.Errorf("transcription produced no text")
	}

	return text, nil
}

// Synthesize renders the reply into a WAV clip.
func (s *Service) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return s.speechClient.Synthesize(ctx, text)
}

func (s *Service) streamAudio(ctx context.Context, audioSrc io.Reader, handle *speechkit.RecognizeHandle) error {
	if err := handle.SendConfig(); err != nil {
		return fmt.Errorf("failed to send audio config: %w", err)
	}

	buffer := make([]byte, bufferSize)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			n, err := audioSrc.Read(buffer)
			if err != nil {
				if errors.Is(err, io.EOF) {
					return handle.CloseSend()
				}

				return fmt.Errorf("failed to read audio: %w", err)
			}

			if n == 0 {
				continue
			}

			if err = handle.Send(buffer[:n]); err != nil {
				return fmt.Errorf("failed to send audio: %w", err)
			}
		}
	}
}
