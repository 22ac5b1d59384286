package emotion

// Emotion 头像表情枚举，与VRM表情预设保持一致
type Emotion string

const (
	Neutral Emotion = "neutral"
	Happy   Emotion = "happy"
	Angry   Emotion = "angry"
	Sad     Emotion = "sad"
	Relaxed Emotion = "relaxed"
)

// 模型回复中的中文标签与表情的映射关系
var labelToEmotion = map[string]Emotion{
	"自然": Neutral,
	"快乐": Happy,
	"愤怒": Angry,
	"悲伤": Sad,
	"放松": Relaxed,
}

var emotionToLabel = map[Emotion]string{
	Neutral: "自然",
	Happy:   "快乐",
	Angry:   "愤怒",
	Sad:     "悲伤",
	Relaxed: "放松",
}

// FromLabel 根据标签获取表情，无法识别的标签一律按自然处理
func FromLabel(label string) Emotion {
	if e, ok := labelToEmotion[label]; ok {
		return e
	}
	return Neutral
}

// Label 获取表情的规范中文标签
func (e Emotion) Label() string {
	if label, ok := emotionToLabel[e]; ok {
		return label
	}
	return emotionToLabel[Neutral]
}

// IsValid 判断是否为枚举内的表情
func (e Emotion) IsValid() bool {
	_, ok := emotionToLabel[e]
	return ok
}
