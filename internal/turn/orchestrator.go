package turn

import (
	"context"
	"fmt"
	"strings"
	"time"

	"miko/internal/asr"
	"miko/internal/audio"
	"miko/internal/avatar"
	"miko/internal/character"
	"miko/internal/dialogue"
	"miko/internal/emotion"
	"miko/internal/metrics"
	"miko/internal/tts"
	"miko/pkg/log"
)

// Camera 摄像机控制
// 双头像布局下在两个头像之间切换焦点，只在头像之间切换，不会在片段播放途中切换
type Camera interface {
	// Refocus 把焦点移到指定头像，阻塞到镜头稳定
	Refocus(ctx context.Context, avatarIndex int) error
}

// Credentials 一轮对话依赖的外部服务凭据
type Credentials struct {
	SpeechKey    string
	SpeechRegion string
	LLMAPIKey    string
}

// Complete 凭据是否齐全，不齐全时回合在发起任何网络调用前静默中止
func (c *Credentials) Complete() bool {
	return c != nil && c.SpeechKey != "" && c.SpeechRegion != "" && c.LLMAPIKey != ""
}

// Outcome 一轮对话的结束方式
type Outcome string

const (
	// OutcomeCompleted 正常播放完成
	OutcomeCompleted Outcome = "completed"
	// OutcomeDropped 回合进行中采集到的语音被丢弃
	OutcomeDropped Outcome = "dropped"
	// OutcomeNoCredentials 凭据缺失，未发起任何网络调用
	OutcomeNoCredentials Outcome = "no_credentials"
	// OutcomeNoTranscript 识别失败或识别结果为空
	OutcomeNoTranscript Outcome = "no_transcript"
	// OutcomeNoReply 生成失败或生成结果为空
	OutcomeNoReply Outcome = "no_reply"
	// OutcomeNoAudio 没有任何可播放的合成片段
	OutcomeNoAudio Outcome = "no_audio"
)

// Result 一轮对话的结果
type Result struct {
	// Utterance 本轮用户说的话，识别成功后填充，调用方用它匹配语音指令
	Utterance string
	// Reply 模型的原始回复文本，生成成功后填充
	Reply   string
	Outcome Outcome
}

// Options 编排器依赖项
type Options struct {
	Layout      character.Layout
	Avatars     []*avatar.Avatar
	ASR         asr.Provider
	Dialogue    *dialogue.Engine
	TTS         tts.Provider
	Camera      Camera
	Credentials *Credentials
	Metrics     *metrics.Metrics
	Logger      *log.Logger

	// OnTranscript 识别出用户文本后立即回调，可为nil
	OnTranscript func(text string)
	// OnReply 生成回复后立即回调，可为nil
	OnReply func(text string)
}

// Orchestrator 回合编排器
// 持有回合门，串起识别、生成、表情拆分、合成与播放编排，
// 双头像布局下在等待回复期间驱动外星角色的占位播报
type Orchestrator struct {
	layout  character.Layout
	avatars []*avatar.Avatar

	asr      asr.Provider
	dialogue *dialogue.Engine
	tts      tts.Provider
	camera   Camera
	creds    *Credentials

	gate    *Gate
	seq     *Sequencer
	metrics *metrics.Metrics
	log     *log.Logger

	onTranscript func(text string)
	onReply      func(text string)
}

func NewOrchestrator(opt *Options) (*Orchestrator, error) {
	if !opt.Layout.IsValid() {
		return nil, fmt.Errorf("invalid layout: %s", opt.Layout)
	}
	want := 1
	if opt.Layout == character.LayoutDual {
		want = 2
	}
	if len(opt.Avatars) != want {
		return nil, fmt.Errorf("layout %s requires %d avatars, got %d", opt.Layout, want, len(opt.Avatars))
	}

	return &Orchestrator{
		layout:       opt.Layout,
		avatars:      opt.Avatars,
		asr:          opt.ASR,
		dialogue:     opt.Dialogue,
		tts:          opt.TTS,
		camera:       opt.Camera,
		creds:        opt.Credentials,
		gate:         NewGate(),
		seq:          NewSequencer(opt.Logger),
		metrics:      opt.Metrics,
		log:          opt.Logger,
		onTranscript: opt.OnTranscript,
		onReply:      opt.OnReply,
	}, nil
}

// Gate 回合门，上游采集按它判断是否丢弃新的语音段
func (o *Orchestrator) Gate() *Gate {
	return o.gate
}

// Avatars 出场头像，索引0为单头像或外星角色，索引1为翻译角色
func (o *Orchestrator) Avatars() []*avatar.Avatar {
	return o.avatars
}

// speaker 本轮发声的头像：单头像布局是唯一头像，双头像布局是翻译角色
func (o *Orchestrator) speaker() *avatar.Avatar {
	return o.avatars[len(o.avatars)-1]
}

// HandleSpeech 处理一段采集到的语音，跑完一轮完整对话
// 回合门在进入时关闭，任何退出路径（完成、中止、异常）都会重新打开
func (o *Orchestrator) HandleSpeech(ctx context.Context, seg *audio.SpeechSegment) Result {
	if !o.gate.TryClose() {
		o.log.Debug("speech segment dropped: turn in flight")
		o.metrics.TurnFinished(string(OutcomeDropped))
		return Result{Outcome: OutcomeDropped}
	}

	var res Result
	defer func() {
		o.gate.Open()
		o.metrics.TurnFinished(string(res.Outcome))
	}()

	if !o.creds.Complete() {
		res.Outcome = OutcomeNoCredentials
		return res
	}

	start := time.Now()
	utterance, err := o.asr.Transcribe(ctx, seg)
	o.metrics.ObserveStage("transcribe", time.Since(start))
	if err != nil {
		o.log.Errorf("transcription failed: %v", err)
		o.metrics.ProviderError("asr")
		res.Outcome = OutcomeNoTranscript
		return res
	}
	if strings.TrimSpace(utterance) == "" {
		res.Outcome = OutcomeNoTranscript
		return res
	}

	res.Utterance = utterance
	if o.onTranscript != nil {
		o.onTranscript(utterance)
	}
	res.Reply, res.Outcome = o.runReply(ctx, utterance)
	return res
}

// HandleChat 处理一条文字输入，从生成阶段进入同一条流水线
func (o *Orchestrator) HandleChat(ctx context.Context, text string) Result {
	if !o.gate.TryClose() {
		o.log.Debug("chat message dropped: turn in flight")
		o.metrics.TurnFinished(string(OutcomeDropped))
		return Result{Outcome: OutcomeDropped}
	}

	var res Result
	defer func() {
		o.gate.Open()
		o.metrics.TurnFinished(string(res.Outcome))
	}()

	if !o.creds.Complete() {
		res.Outcome = OutcomeNoCredentials
		return res
	}
	if strings.TrimSpace(text) == "" {
		res.Outcome = OutcomeNoTranscript
		return res
	}

	res.Utterance = text
	res.Reply, res.Outcome = o.runReply(ctx, text)
	return res
}

// runReply 生成、拆分、合成并播放一轮回复
func (o *Orchestrator) runReply(ctx context.Context, utterance string) (string, Outcome) {
	persona := o.avatars[0].Character

	// 双头像布局下等待回复期间让外星角色持续开口说话
	// 中止路径同样要停掉占位播报，Stop对空闲状态是no-op
	if o.layout == character.LayoutDual {
		o.avatars[0].Filler().Start(ctx)
		defer o.avatars[0].Filler().Stop()
	}

	start := time.Now()
	reply, err := o.dialogue.Reply(ctx, persona, o.layout.SessionKey(), utterance)
	o.metrics.ObserveStage("generate", time.Since(start))
	if err != nil {
		o.metrics.ProviderError("llm")
		return "", OutcomeNoReply
	}
	if o.onReply != nil {
		o.onReply(reply)
	}

	segments := emotion.Split(reply)
	if o.layout == character.LayoutDual {
		// 旁白前缀：翻译角色先报出外星角色在说话
		voiceOver := emotion.Segment{
			Emotion: emotion.Neutral,
			Content: o.avatars[0].Character.Nickname + "说，",
		}
		segments = append([]emotion.Segment{voiceOver}, segments...)
	}

	start = time.Now()
	synthesized := o.synthesize(ctx, segments, o.speaker().Character.Voice)
	o.metrics.ObserveStage("synthesize", time.Since(start))
	if len(synthesized) == 0 {
		return reply, OutcomeNoAudio
	}

	// 播放开始前必须先停掉占位播报，等外星角色把当前这一遍说完
	if o.layout == character.LayoutDual {
		o.avatars[0].Filler().Stop()
	}

	o.play(ctx, synthesized)
	return reply, OutcomeCompleted
}

// synthesize 逐段合成，丢弃文本或音频为空的片段，保持原文顺序
func (o *Orchestrator) synthesize(ctx context.Context, segments []emotion.Segment, voice string) []*SynthesizedSegment {
	out := make([]*SynthesizedSegment, 0, len(segments))
	for _, seg := range segments {
		if strings.TrimSpace(seg.Content) == "" {
			continue
		}
		pcm, err := o.tts.Synthesize(ctx, seg.Content, seg.Emotion, voice)
		if err != nil {
			o.log.Errorf("synthesis failed: %v", err)
			o.metrics.ProviderError("tts")
			continue
		}
		s := &SynthesizedSegment{
			Emotion:    seg.Emotion,
			Text:       seg.Content,
			PCM:        pcm,
			SampleRate: audio.DefaultSampleRate,
		}
		if !s.Valid() {
			continue
		}
		out = append(out, s)
	}
	return out
}

// play 把合成片段交给播放编排器
// 双头像布局下播放前把镜头切到翻译角色，播完切回外星角色
func (o *Orchestrator) play(ctx context.Context, segments []*SynthesizedSegment) {
	speaker := o.speaker()

	if o.layout == character.LayoutDual && o.camera != nil {
		if err := o.camera.Refocus(ctx, speaker.Index); err != nil {
			o.log.Errorf("camera refocus failed: %v", err)
		}
		defer func() {
			if err := o.camera.Refocus(ctx, o.avatars[0].Index); err != nil {
				o.log.Errorf("camera refocus failed: %v", err)
			}
		}()
	}

	start := time.Now()
	// 播放异常按该头像播放结束处理，不向上传播
	if err := o.seq.Play(ctx, speaker, segments); err != nil {
		o.log.Errorf("playback failed: %v", err)
	}
	o.metrics.ObserveStage("play", time.Since(start))
}
