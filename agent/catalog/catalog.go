// Package catalog 提供内置的智能体角色与工作流模板。
//
// 数据以 YAML 形式嵌入二进制，首次访问时解析一次。调用方也可以
// 通过实现 [Catalog] 提供自己的角色与模板。
package catalog

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed personas.yaml
var personasYAML []byte

//go:embed templates.yaml
var templatesYAML []byte

// Role 智能体在会话中的角色类型
type Role string

const (
	RoleAssistant Role = "assistant"
	RoleUserProxy Role = "user_proxy"
)

// Persona 角色定义
type Persona struct {
	TypeID       string   `yaml:"type" json:"type"`
	Name         string   `yaml:"name" json:"name"`
	Role         Role     `yaml:"role" json:"role"`
	Avatar       string   `yaml:"avatar" json:"avatar"`
	Instructions string   `yaml:"instructions" json:"instructions"`
	Capabilities []string `yaml:"capabilities" json:"capabilities"`
}

// TemplateMember 模板要求的成员
type TemplateMember struct {
	Type     string `yaml:"type" json:"type"`
	Required bool   `yaml:"required" json:"required"`
}

// Phase 模板中的一个阶段，Agent 为负责该阶段的角色类型
type Phase struct {
	Phase       string `yaml:"phase" json:"phase"`
	Agent       string `yaml:"agent" json:"agent"`
	Description string `yaml:"description" json:"description"`
}

// Template 工作流模板
type Template struct {
	ID            string           `yaml:"id" json:"id"`
	Name          string           `yaml:"name" json:"name"`
	Description   string           `yaml:"description" json:"description"`
	Icon          string           `yaml:"icon" json:"icon"`
	Workflow      string           `yaml:"workflow" json:"workflow"`
	Members       []TemplateMember `yaml:"members" json:"members"`
	Phases        []Phase          `yaml:"phases" json:"phases"`
	Tags          []string         `yaml:"tags" json:"tags"`
	EstimatedTime string           `yaml:"estimated_time" json:"estimated_time"`
}

// Catalog 角色与模板的只读查询接口
type Catalog interface {
	Persona(typeID string) (Persona, bool)
	Template(id string) (Template, bool)
	Personas() []Persona
	Templates() []Template
}

// Static 基于内存映射的 Catalog 实现
type Static struct {
	personas  map[string]Persona
	templates map[string]Template
}

// NewStatic 用给定的角色与模板构建目录，后出现的同名条目覆盖先出现的
func NewStatic(personas []Persona, templates []Template) *Static {
	s := &Static{
		personas:  make(map[string]Persona, len(personas)),
		templates: make(map[string]Template, len(templates)),
	}
	for _, p := range personas {
		s.personas[p.TypeID] = p
	}
	for _, t := range templates {
		s.templates[t.ID] = t
	}
	return s
}

// Parse 从 YAML 文档解析目录
func Parse(personaDoc, templateDoc []byte) (*Static, error) {
	var personas []Persona
	if err := yaml.Unmarshal(personaDoc, &personas); err != nil {
		return nil, fmt.Errorf("parse personas: %w", err)
	}
	var templates []Template
	if err := yaml.Unmarshal(templateDoc, &templates); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	for _, p := range personas {
		if p.TypeID == "" || p.Name == "" {
			return nil, fmt.Errorf("persona missing type or name: %+v", p)
		}
	}
	for _, t := range templates {
		if t.ID == "" || len(t.Members) == 0 {
			return nil, fmt.Errorf("template %q has no members", t.ID)
		}
	}
	return NewStatic(personas, templates), nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Static
)

// Default 返回内置目录。嵌入数据在构建时固定，解析失败属于编程错误。
func Default() *Static {
	defaultOnce.Do(func() {
		c, err := Parse(personasYAML, templatesYAML)
		if err != nil {
			panic(fmt.Sprintf("catalog: embedded data is invalid: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

func (s *Static) Persona(typeID string) (Persona, bool) {
	p, ok := s.personas[typeID]
	if ok {
		p.Capabilities = append([]string(nil), p.Capabilities...)
	}
	return p, ok
}

func (s *Static) Template(id string) (Template, bool) {
	t, ok := s.templates[id]
	return t, ok
}

// Personas 按类型 ID 排序返回
func (s *Static) Personas() []Persona {
	out := make([]Persona, 0, len(s.personas))
	for _, p := range s.personas {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TypeID < out[j].TypeID })
	return out
}

// Templates 按模板 ID 排序返回
func (s *Static) Templates() []Template {
	out := make([]Template, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
