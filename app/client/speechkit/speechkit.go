package speechkit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"lingotutor/app/config"

	"github.com/samber/do"
	"github.com/yandex-cloud/go-genproto/yandex/cloud/ai/tts/v3"
	ycsdk "github.com/yandex-cloud/go-sdk"
	"github.com/yandex-cloud/go-sdk/iamkey"
)

// YandexSpeechKit wraps the SpeechKit STT v3 streaming recognizer and the
// TTS v3 synthesizer. Both engines stay external, this is transport only.
type YandexSpeechKit struct {
	cfg *config.Config
	sdk *ycsdk.SDK
}

func NewClient(di *do.Injector) (*YandexSpeechKit, error) {
	ctx := do.MustInvoke[context.Context](di)
	cfg := do.MustInvoke[*config.Config](di)

	keyBytes, err := os.ReadFile(cfg.SpeechKit.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("could not read service account key: %w", err)
	}

	var key iamkey.Key
	if err = json.Unmarshal(keyBytes, &key); err != nil {
		return nil, fmt.Errorf("could not parse service account key: %w", err)
	}

	creds, err := ycsdk.ServiceAccountKey(&key)
	if err != nil {
		return nil, fmt.Errorf("could not create service account key: %w", err)
	}

	sdk, err := ycsdk.Build(ctx, ycsdk.Config{
		Credentials: creds,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Yandex SDK: %w", err)
	}

	return &YandexSpeechKit{
		cfg: cfg,
		sdk: sdk,
	}, nil
}

// StartRecognition opens a streaming recognition session for one audio clip.
func (y *YandexSpeechKit) StartRecognition(ctx context.Context) (*RecognizeHandle, error) {
	ctx, cancel := context.WithCancel(ctx)

	client, err := y.sdk.AI().STTV3().Recognizer().RecognizeStreaming(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create recognizer client: %w", err)
	}

	return &RecognizeHandle{
		client: client,
		cancel: cancel,
	}, nil
}

// Synthesize renders the reply text into a WAV clip.
func (y *YandexSpeechKit) Synthesize(ctx context.Context, text string) ([]byte, error) {
	var hint tts.Hints
	hint.SetVoice(y.cfg.SpeechKit.Voice)

	var containerAudio tts.ContainerAudio
	containerAudio.SetContainerAudioType(tts.ContainerAudio_WAV)

	var audioFormat tts.AudioFormatOptions
	audioFormat.SetContainerAudio(&containerAudio)

	var req tts.UtteranceSynthesisRequest
	req.SetModel("general")
	req.SetText(text)
	req.SetHints([]*tts.Hints{&hint})
	req.SetOutputAudioSpec(&audioFormat)

	stream, err := y.sdk.AI().TTSV3().Synthesizer().UtteranceSynthesis(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("failed to start synthesis: %w", err)
	}

	var audio []byte

	for {
		resp, err := stream.Recv()
		if err != nil {
			break
		}

		chunk := resp.GetAudioChunk()
		if chunk == nil {
			continue
		}

		audio = append(audio, chunk.GetData()...)
	}

	if len(audio) == 0 {
		return nil, fmt.Errorf("synthesis produced no audio")
	}

	return audio, nil
}
