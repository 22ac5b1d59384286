package emotion

import (
	"regexp"
	"strings"
)

// Segment 模型回复按表情拆分后的片段，Content保持原文顺序
type Segment struct {
	Emotion Emotion
	Content string
}

// 形如【快乐】的表情标签
var labelRegexp = regexp.MustCompile(`【(.*?)】`)

// Split 按表情标签拆分回复文本
// 标签缺失或无法识别时按自然处理；没有任何标签时整段文本作为一个自然片段返回
// 片段顺序与原文从左到右的出现顺序一致，该顺序即为后续合成与播放顺序
func Split(text string) []Segment {
	locs := labelRegexp.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return []Segment{{Emotion: Neutral, Content: text}}
	}

	segments := make([]Segment, 0, len(locs)+1)

	// 首个标签之前的文本没有标签，按自然片段保留，避免丢字
	if locs[0][0] > 0 {
		segments = append(segments, Segment{Emotion: Neutral, Content: text[:locs[0][0]]})
	}

	for i, loc := range locs {
		label := text[loc[2]:loc[3]]
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		segments = append(segments, Segment{
			Emotion: FromLabel(label),
			Content: text[loc[1]:end],
		})
	}
	return segments
}

// Rebuild 将片段按规范标签重新拼接
// Split后再Rebuild应得到与原文等价的文本（标签被归一化为规范形式）
func Rebuild(segments []Segment) string {
	var builder strings.Builder
	for _, seg := range segments {
		builder.WriteString("【")
		builder.WriteString(seg.Emotion.Label())
		builder.WriteString("】")
		builder.WriteString(seg.Content)
	}
	return builder.String()
}
