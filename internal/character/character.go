package character

import (
	"fmt"
)

// Layout 对话布局
type Layout string

const (
	// LayoutSingle 单头像布局：一个角色，一个声道
	LayoutSingle Layout = "single"
	// LayoutDual 双头像布局：外星角色说外星语，翻译角色播报真实回复
	LayoutDual Layout = "dual"
)

func (l Layout) IsValid() bool {
	return l == LayoutSingle || l == LayoutDual
}

// SessionKey 布局对应的会话键，同一布局共享一份对话历史
func (l Layout) SessionKey() string {
	return string(l) + "-default"
}

// PromptRole 人设模板片段的角色标记
type PromptRole string

const (
	PromptRoleAI    PromptRole = "ai"
	PromptRoleHuman PromptRole = "human"
)

// PromptFragment 人设模板片段，按顺序送入对话引擎
type PromptFragment struct {
	Role    PromptRole `yaml:"role"`
	Content string     `yaml:"content"`
}

// Character 角色静态信息，进程启动时从配置加载，加载后不再修改
type Character struct {
	ID             string           `yaml:"id"`
	Name           string           `yaml:"name"`
	Nickname       string           `yaml:"nickname"`
	Voice          string           `yaml:"voice"`
	PromptTemplate []PromptFragment `yaml:"prompt_template"`
	AdaptLayouts   []Layout         `yaml:"adapt_layouts"`
	// FillerClip 占位音频文件路径，双头像布局下等待回复时循环播放
	// 允许为空，为空时该角色不启用占位播报
	FillerClip string `yaml:"filler_clip"`
}

// Adapts 判断角色是否适配指定布局
func (c *Character) Adapts(layout Layout) bool {
	for _, l := range c.AdaptLayouts {
		if l == layout {
			return true
		}
	}
	return false
}

// Registry 角色注册表
type Registry struct {
	characters map[string]*Character
	order      []string
}

func NewRegistry(characters []*Character) (*Registry, error) {
	r := &Registry{characters: make(map[string]*Character, len(characters))}
	for _, c := range characters {
		if c.ID == "" {
			return nil, fmt.Errorf("character %q missing id", c.Name)
		}
		if _, ok := r.characters[c.ID]; ok {
			return nil, fmt.Errorf("duplicate character id: %s", c.ID)
		}
		r.characters[c.ID] = c
		r.order = append(r.order, c.ID)
	}
	return r, nil
}

func (r *Registry) Get(id string) (*Character, bool) {
	c, ok := r.characters[id]
	return c, ok
}

// Cast 根据布局挑选出场角色
// 单头像布局返回一个角色；双头像布局返回[外星角色, 翻译角色]，
// 生成文本使用第一个角色的人设，发声使用最后一个角色的音色
func (r *Registry) Cast(layout Layout, ids ...string) ([]*Character, error) {
	want := 1
	if layout == LayoutDual {
		want = 2
	}
	if len(ids) != want {
		return nil, fmt.Errorf("layout %s requires %d characters, got %d", layout, want, len(ids))
	}

	cast := make([]*Character, 0, want)
	for _, id := range ids {
		c, ok := r.Get(id)
		if !ok {
			return nil, fmt.Errorf("unknown character: %s", id)
		}
		if !c.Adapts(layout) {
			return nil, fmt.Errorf("character %s does not adapt layout %s", id, layout)
		}
		cast = append(cast, c)
	}
	return cast, nil
}
