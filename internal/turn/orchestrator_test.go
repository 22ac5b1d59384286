package turn

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"miko/internal/asr"
	"miko/internal/audio"
	"miko/internal/avatar"
	"miko/internal/character"
	"miko/internal/dialogue"
	"miko/internal/emotion"
	"miko/internal/llm"
	"miko/internal/tts"
	"miko/pkg/log"
)

func loudPCM(d time.Duration) []byte {
	samples := int(d.Seconds() * float64(audio.DefaultSampleRate))
	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(30000)))
	}
	return pcm
}

// recorder 记录各协作方被调用的顺序
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(format string, v ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, v...))
}

// filtered 只保留以指定前缀开头的事件，保持原顺序
func (r *recorder) filtered(prefixes ...string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	for _, e := range r.events {
		for _, p := range prefixes {
			if len(e) >= len(p) && e[:len(p)] == p {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

type fakeASR struct {
	text  string
	err   error
	calls int
}

func (a *fakeASR) SetConfig(cfg *asr.Config) *asr.Config {
	return cfg
}

func (a *fakeASR) Transcribe(ctx context.Context, segment *audio.SpeechSegment) (string, error) {
	a.calls++
	return a.text, a.err
}

type fakeLLM struct {
	f     *fixture
	reply string
	err   error
	calls int
	// fillerStates Ask被调用时占位播报的状态
	fillerStates []avatar.FillerState
}

func (l *fakeLLM) Ask(ctx context.Context, params llm.AskRequestParams) (string, error) {
	l.calls++
	l.fillerStates = append(l.fillerStates, l.f.fillerState())
	return l.reply, l.err
}

type ttsCall struct {
	Text    string
	Emotion emotion.Emotion
}

type fakeTTS struct {
	f *fixture
	// emptyFor 指定文本返回空音频，模拟部分片段合成失败
	emptyFor map[string]bool
	// empty 所有片段都返回空音频
	empty        bool
	calls        []ttsCall
	fillerStates []avatar.FillerState
}

func (s *fakeTTS) SetConfig(cfg *tts.Config) *tts.Config {
	return cfg
}

func (s *fakeTTS) Synthesize(ctx context.Context, text string, emo emotion.Emotion, voice string) ([]byte, error) {
	s.calls = append(s.calls, ttsCall{Text: text, Emotion: emo})
	s.fillerStates = append(s.fillerStates, s.f.fillerState())
	if s.empty || s.emptyFor[text] {
		return nil, nil
	}
	return loudPCM(20 * time.Millisecond), nil
}

type fakeCamera struct {
	rec *recorder
}

func (c *fakeCamera) Refocus(ctx context.Context, avatarIndex int) error {
	c.rec.add("camera:%d", avatarIndex)
	return nil
}

type fakePlayer struct {
	f     *fixture
	delay time.Duration
	err   error
	// fillerAtSpeakerPlay 发声头像每次开播时占位播报的状态
	mu                  sync.Mutex
	fillerAtSpeakerPlay []avatar.FillerState
}

func (p *fakePlayer) PlayAudio(ctx context.Context, avatarIndex int, pcm []byte, sampleRate int) error {
	p.f.rec.add("play:%d:%s", avatarIndex, p.f.orch.Avatars()[avatarIndex].Emotion())
	if avatarIndex == p.f.orch.speaker().Index {
		p.mu.Lock()
		p.fillerAtSpeakerPlay = append(p.fillerAtSpeakerPlay, p.f.fillerState())
		p.mu.Unlock()
	}
	if p.delay > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(p.delay):
		}
	}
	return p.err
}

type fixture struct {
	rec    *recorder
	orch   *Orchestrator
	asr    *fakeASR
	llm    *fakeLLM
	tts    *fakeTTS
	player *fakePlayer
}

// fillerState 外星头像当前的占位播报状态，单头像布局恒为空闲
func (f *fixture) fillerState() avatar.FillerState {
	avatars := f.orch.Avatars()
	if len(avatars) < 2 {
		return avatar.FillerIdle
	}
	return avatars[0].Filler().State()
}

func validCredentials() *Credentials {
	return &Credentials{SpeechKey: "key", SpeechRegion: "eastasia", LLMAPIKey: "key"}
}

func newFixture(t *testing.T, layout character.Layout, creds *Credentials) *fixture {
	t.Helper()

	f := &fixture{rec: &recorder{}}
	f.asr = &fakeASR{text: "hello"}
	f.llm = &fakeLLM{f: f, reply: "【快乐】你好呀"}
	f.tts = &fakeTTS{f: f}
	f.player = &fakePlayer{f: f, delay: 2 * time.Millisecond}
	logger := log.NewNopLogger()

	var avatars []*avatar.Avatar
	if layout == character.LayoutSingle {
		ch := &character.Character{
			ID: "miko", Name: "miko", Voice: "zh-CN-XiaoxiaoNeural",
			AdaptLayouts: []character.Layout{character.LayoutSingle},
		}
		avatars = append(avatars, avatar.New(0, ch, f.player, logger))
	} else {
		alien := &character.Character{
			ID: "alien", Name: "外星人", Nickname: "阿绿",
			AdaptLayouts: []character.Layout{character.LayoutDual},
			FillerClip:   writeFillerClip(t),
		}
		translator := &character.Character{
			ID: "translator", Name: "翻译官", Voice: "zh-CN-XiaoxiaoNeural",
			AdaptLayouts: []character.Layout{character.LayoutDual},
		}
		a0 := avatar.New(0, alien, f.player, logger)
		a0.LoadFillerClip()
		require.True(t, a0.HasFillerClip())
		avatars = append(avatars, a0, avatar.New(1, translator, f.player, logger))
	}

	orch, err := NewOrchestrator(&Options{
		Layout:      layout,
		Avatars:     avatars,
		ASR:         f.asr,
		Dialogue:    dialogue.NewEngine(f.llm, logger),
		TTS:         f.tts,
		Camera:      &fakeCamera{rec: f.rec},
		Credentials: creds,
		Logger:      logger,
	})
	require.NoError(t, err)
	f.orch = orch
	return f
}

func writeFillerClip(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "filler.wav")
	wav := audio.EncodeWAV(loudPCM(5*time.Millisecond), audio.DefaultSampleRate)
	require.NoError(t, os.WriteFile(path, wav, 0o644))
	return path
}

func speech() *audio.SpeechSegment {
	return audio.NewSpeechSegment(loudPCM(100*time.Millisecond), audio.DefaultSampleRate)
}

func TestSingleLayoutTurn(t *testing.T) {
	f := newFixture(t, character.LayoutSingle, validCredentials())

	res := f.orch.HandleSpeech(context.Background(), speech())

	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, "hello", res.Utterance)
	assert.False(t, f.orch.Gate().IsClosed())

	// 一个快乐片段在唯一头像上播放，播完表情恢复自然
	assert.Equal(t, []ttsCall{{Text: "你好呀", Emotion: emotion.Happy}}, f.tts.calls)
	assert.Equal(t, []string{"play:0:happy"}, f.rec.filtered("play:"))
	assert.Equal(t, emotion.Neutral, f.orch.Avatars()[0].Emotion())

	// 单头像布局不切镜头
	assert.Empty(t, f.rec.filtered("camera:"))
}

func TestDualLayoutTurn(t *testing.T) {
	f := newFixture(t, character.LayoutDual, validCredentials())
	f.llm.reply = "【自然】太阳很大【愤怒】别晒着我"

	res := f.orch.HandleSpeech(context.Background(), speech())

	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.False(t, f.orch.Gate().IsClosed())

	// 旁白前缀在前，回复片段保持原文顺序
	assert.Equal(t, []ttsCall{
		{Text: "阿绿说，", Emotion: emotion.Neutral},
		{Text: "太阳很大", Emotion: emotion.Neutral},
		{Text: "别晒着我", Emotion: emotion.Angry},
	}, f.tts.calls)

	// 生成与合成全程占位播报在运行
	for _, state := range f.llm.fillerStates {
		assert.Equal(t, avatar.FillerLooping, state)
	}
	require.NotEmpty(t, f.tts.fillerStates)
	for _, state := range f.tts.fillerStates {
		assert.Equal(t, avatar.FillerLooping, state)
	}

	// 翻译头像开播前占位播报必须已经停止
	require.NotEmpty(t, f.player.fillerAtSpeakerPlay)
	for _, state := range f.player.fillerAtSpeakerPlay {
		assert.Equal(t, avatar.FillerIdle, state)
	}
	assert.Equal(t, avatar.FillerIdle, f.fillerState())

	// 播放前镜头切到翻译头像，播完切回外星头像
	got := f.rec.filtered("camera:", "play:1:")
	assert.Equal(t, []string{
		"camera:1",
		"play:1:neutral",
		"play:1:neutral",
		"play:1:angry",
		"camera:0",
	}, got)
}

func TestEmptyTranscriptAborts(t *testing.T) {
	f := newFixture(t, character.LayoutSingle, validCredentials())
	f.asr.text = ""

	res := f.orch.HandleSpeech(context.Background(), speech())

	assert.Equal(t, OutcomeNoTranscript, res.Outcome)
	assert.False(t, f.orch.Gate().IsClosed())
	// 识别为空时不再发起生成与合成调用
	assert.Equal(t, 0, f.llm.calls)
	assert.Empty(t, f.tts.calls)
	assert.Empty(t, f.rec.filtered("play:"))
}

func TestAllSynthesisEmptyAborts(t *testing.T) {
	f := newFixture(t, character.LayoutDual, validCredentials())
	f.tts.empty = true

	res := f.orch.HandleSpeech(context.Background(), speech())

	assert.Equal(t, OutcomeNoAudio, res.Outcome)
	assert.False(t, f.orch.Gate().IsClosed())
	assert.Empty(t, f.rec.filtered("play:1:"))
	assert.Empty(t, f.rec.filtered("camera:"))
	// 中止路径同样停掉占位播报
	assert.Equal(t, avatar.FillerIdle, f.fillerState())
}

func TestMissingCredentialsAbortsSilently(t *testing.T) {
	f := newFixture(t, character.LayoutSingle, &Credentials{})

	res := f.orch.HandleSpeech(context.Background(), speech())

	assert.Equal(t, OutcomeNoCredentials, res.Outcome)
	assert.False(t, f.orch.Gate().IsClosed())
	// 凭据缺失时不发起任何网络调用
	assert.Equal(t, 0, f.asr.calls)
	assert.Equal(t, 0, f.llm.calls)
	assert.Empty(t, f.tts.calls)
}

func TestTranscriptionErrorOpensGate(t *testing.T) {
	f := newFixture(t, character.LayoutSingle, validCredentials())
	f.asr.err = errors.New("asr unavailable")

	res := f.orch.HandleSpeech(context.Background(), speech())

	assert.Equal(t, OutcomeNoTranscript, res.Outcome)
	assert.False(t, f.orch.Gate().IsClosed())
	assert.Equal(t, 0, f.llm.calls)
}

func TestGenerationErrorOpensGate(t *testing.T) {
	f := newFixture(t, character.LayoutDual, validCredentials())
	f.llm.err = errors.New("llm unavailable")

	res := f.orch.HandleSpeech(context.Background(), speech())

	assert.Equal(t, OutcomeNoReply, res.Outcome)
	assert.False(t, f.orch.Gate().IsClosed())
	assert.Empty(t, f.tts.calls)
	assert.Equal(t, avatar.FillerIdle, f.fillerState())
}

func TestPlaybackErrorOpensGateAndResetsEmotion(t *testing.T) {
	f := newFixture(t, character.LayoutSingle, validCredentials())
	f.player.err = errors.New("audio device gone")

	res := f.orch.HandleSpeech(context.Background(), speech())

	// 播放异常按播放结束处理，不向上传播
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.False(t, f.orch.Gate().IsClosed())
	assert.Equal(t, emotion.Neutral, f.orch.Avatars()[0].Emotion())
}

func TestSpeechDroppedWhileGated(t *testing.T) {
	f := newFixture(t, character.LayoutSingle, validCredentials())
	f.orch.Gate().Close()

	res := f.orch.HandleSpeech(context.Background(), speech())

	assert.Equal(t, OutcomeDropped, res.Outcome)
	assert.Equal(t, 0, f.asr.calls)
	// 丢弃路径不代表回合结束，门保持原状
	assert.True(t, f.orch.Gate().IsClosed())
}

func TestPartialSynthesisPlaysValidSubset(t *testing.T) {
	f := newFixture(t, character.LayoutSingle, validCredentials())
	f.llm.reply = "【快乐】你好呀【悲伤】再见了"
	f.tts.emptyFor = map[string]bool{"你好呀": true}

	res := f.orch.HandleSpeech(context.Background(), speech())

	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, []string{"play:0:sad"}, f.rec.filtered("play:"))
}

func TestHandleChatSkipsTranscription(t *testing.T) {
	f := newFixture(t, character.LayoutSingle, validCredentials())

	res := f.orch.HandleChat(context.Background(), "今天天气怎么样")

	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, "今天天气怎么样", res.Utterance)
	assert.Equal(t, 0, f.asr.calls)
	assert.Equal(t, 1, f.llm.calls)
	assert.False(t, f.orch.Gate().IsClosed())
}

func TestSequencerSkipsInvalidSegments(t *testing.T) {
	f := newFixture(t, character.LayoutSingle, validCredentials())
	seq := NewSequencer(log.NewNopLogger())

	segments := []*SynthesizedSegment{
		{Emotion: emotion.Happy, Text: "你好", PCM: loudPCM(10 * time.Millisecond), SampleRate: audio.DefaultSampleRate},
		{Emotion: emotion.Sad, Text: "", PCM: loudPCM(10 * time.Millisecond), SampleRate: audio.DefaultSampleRate},
		{Emotion: emotion.Angry, Text: "哼", PCM: nil, SampleRate: audio.DefaultSampleRate},
	}
	err := seq.Play(context.Background(), f.orch.Avatars()[0], segments)

	require.NoError(t, err)
	assert.Equal(t, []string{"play:0:happy"}, f.rec.filtered("play:"))
	assert.Equal(t, emotion.Neutral, f.orch.Avatars()[0].Emotion())
}
