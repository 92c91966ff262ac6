package service

import (
	"bytes"
	"errors"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/lifelog/internal/db"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"gorm.io/gorm"
)

var (
	// ErrNoteNotFound 在指定笔记不存在时返回
	ErrNoteNotFound = errors.New("note not found")
	// ErrNoteSlugTaken 在 slug 冲突时返回
	ErrNoteSlugTaken = errors.New("note slug already taken")
)

// wikiLinkPattern 匹配 [[target]] 与 [[target|label]] 两种写法
var wikiLinkPattern = regexp.MustCompile(`\[\[([^\[\]|]+)(?:\|([^\[\]]+))?\]\]`)

var slugStripPattern = regexp.MustCompile(`[^a-z0-9]+`)

// NoteService 负责笔记的增删改查、wiki 链接维护与 Markdown 渲染。
// 渲染器与缓存都是显式构造、随服务注入的，不挂全局单例。
type NoteService struct {
	db        *gorm.DB
	markdown  goldmark.Markdown
	sanitizer *bluemonday.Policy
	renders   *renderCache
}

// NoteInput 定义创建/更新笔记时可配置字段
type NoteInput struct {
	Title   string
	Slug    string
	Content string
}

// NewNoteService 构造 NoteService
func NewNoteService(gdb *gorm.DB) *NoteService {
	return &NoteService{
		db: gdb,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.Table),
			goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
		),
		sanitizer: bluemonday.UGCPolicy(),
		renders:   newRenderCache(128, 5*time.Minute),
	}
}

// List 返回全部笔记，按更新时间降序
func (s *NoteService) List() ([]db.Note, error) {
	var notes []db.Note
	if err := s.db.Order("updated_at DESC").Find(&notes).Error; err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return notes, nil
}

// Get 根据 ID 获取笔记
func (s *NoteService) Get(id uint) (*db.Note, error) {
	var note db.Note
	if err := s.db.First(&note, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoteNotFound
		}
		return nil, fmt.Errorf("get note: %w", err)
	}
	return &note, nil
}

// GetBySlug 根据 slug 获取笔记
func (s *NoteService) GetBySlug(slug string) (*db.Note, error) {
	var note db.Note
	if err := s.db.Where("slug = ?", slug).First(&note).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoteNotFound
		}
		return nil, fmt.Errorf("get note by slug: %w", err)
	}
	return &note, nil
}

// Create 新建笔记并登记其 wiki 链接
func (s *NoteService) Create(input NoteInput) (*db.Note, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("note title is required")
	}

	slug := strings.TrimSpace(input.Slug)
	if slug == "" {
		slug = Slugify(title)
	}

	note := db.Note{
		Title:   title,
		Slug:    slug,
		Content: input.Content,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&db.Note{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrNoteSlugTaken
		}

		if err := tx.Create(&note).Error; err != nil {
			return err
		}

		return replaceNoteLinks(tx, note.ID, ExtractWikiLinks(note.Content))
	})
	if err != nil {
		if errors.Is(err, ErrNoteSlugTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("create note: %w", err)
	}

	return &note, nil
}

// Update 更新笔记并重建其 wiki 链接
func (s *NoteService) Update(id uint, input NoteInput) (*db.Note, error) {
	note, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("note title is required")
	}

	note.Title = title
	if slug := strings.TrimSpace(input.Slug); slug != "" {
		note.Slug = slug
	}
	note.Content = input.Content

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&db.Note{}).Where("slug = ? AND id <> ?", note.Slug, note.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrNoteSlugTaken
		}

		if err := tx.Save(note).Error; err != nil {
			return err
		}

		return replaceNoteLinks(tx, note.ID, ExtractWikiLinks(note.Content))
	})
	if err != nil {
		if errors.Is(err, ErrNoteSlugTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("update note: %w", err)
	}

	return note, nil
}

// Delete 将笔记移入回收站
func (s *NoteService) Delete(id uint) error {
	if err := s.db.Delete(&db.Note{}, id).Error; err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	return nil
}

// Backlinks 返回所有链接到指定 slug 的笔记
func (s *NoteService) Backlinks(slug string) ([]db.Note, error) {
	var notes []db.Note
	if err := s.db.Model(&db.Note{}).
		Joins("JOIN note_links ON note_links.source_note_id = notes.id").
		Where("note_links.target_slug = ?", slug).
		Where("note_links.deleted_at IS NULL").
		Order("notes.updated_at DESC").
		Find(&notes).Error; err != nil {
		return nil, fmt.Errorf("list backlinks: %w", err)
	}
	return notes, nil
}

// Links 返回笔记的外链 slug 集合
func (s *NoteService) Links(noteID uint) ([]string, error) {
	var links []db.NoteLink
	if err := s.db.Where("source_note_id = ?", noteID).Order("target_slug ASC").Find(&links).Error; err != nil {
		return nil, fmt.Errorf("list note links: %w", err)
	}

	slugs := make([]string, 0, len(links))
	for _, link := range links {
		slugs = append(slugs, link.TargetSlug)
	}
	return slugs, nil
}

// Render 将 Markdown 渲染为净化后的 HTML。
// wiki 链接先改写为站内地址再交给渲染器；结果按内容哈希缓存。
func (s *NoteService) Render(content string) (string, error) {
	key := contentHash(content)
	if cached, ok := s.renders.get(key); ok {
		return cached, nil
	}

	expanded := wikiLinkPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := wikiLinkPattern.FindStringSubmatch(match)
		target := strings.TrimSpace(groups[1])
		label := target
		if len(groups) > 2 && strings.TrimSpace(groups[2]) != "" {
			label = strings.TrimSpace(groups[2])
		}
		return fmt.Sprintf("[%s](/notes/%s)", label, Slugify(target))
	})

	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(expanded), &buf); err != nil {
		return "", fmt.Errorf("render note: %w", err)
	}

	rendered := s.sanitizer.Sanitize(buf.String())
	s.renders.put(key, rendered)
	return rendered, nil
}

// ExtractWikiLinks 提取内容中的 wiki 链接目标 slug（去重，保持出现顺序）
func ExtractWikiLinks(content string) []string {
	matches := wikiLinkPattern.FindAllStringSubmatch(content, -1)

	seen := make(map[string]struct{}, len(matches))
	var slugs []string
	for _, match := range matches {
		slug := Slugify(strings.TrimSpace(match[1]))
		if slug == "" {
			continue
		}
		if _, ok := seen[slug]; ok {
			continue
		}
		seen[slug] = struct{}{}
		slugs = append(slugs, slug)
	}

	return slugs
}

// Slugify 将标题规整为 URL 友好的 slug
func Slugify(raw string) string {
	lower := strings.ToLower(strings.TrimSpace(raw))
	slug := slugStripPattern.ReplaceAllString(lower, "-")
	return strings.Trim(slug, "-")
}

func replaceNoteLinks(tx *gorm.DB, noteID uint, targets []string) error {
	if err := tx.Unscoped().Where("source_note_id = ?", noteID).Delete(&db.NoteLink{}).Error; err != nil {
		return err
	}

	for _, target := range targets {
		if err := tx.Create(&db.NoteLink{SourceNoteID: noteID, TargetSlug: target}).Error; err != nil {
			return err
		}
	}

	return nil
}

func contentHash(content string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(content))
	return h.Sum64()
}

// renderCache 是一个有界、带 TTL 的渲染结果缓存。
// 显式构造并注入 NoteService，不做进程级静态状态。
type renderCache struct {
	mu      sync.Mutex
	entries map[uint64]renderEntry
	max     int
	ttl     time.Duration
}

type renderEntry struct {
	html     string
	storedAt time.Time
}

func newRenderCache(max int, ttl time.Duration) *renderCache {
	return &renderCache{
		entries: make(map[uint64]renderEntry),
		max:     max,
		ttl:     ttl,
	}
}

func (c *renderCache) get(key uint64) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if time.Since(entry.storedAt) > c.ttl {
		delete(c.entries, key)
		return "", false
	}
	return entry.html, true
}

func (c *renderCache) put(key uint64, html string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.max {
		// 容量满时先剔除最旧的条目
		var oldestKey uint64
		var oldestAt time.Time
		first := true
		for k, e := range c.entries {
			if first || e.storedAt.Before(oldestAt) {
				oldestKey = k
				oldestAt = e.storedAt
				first = false
			}
		}
		delete(c.entries, oldestKey)
	}

	c.entries[key] = renderEntry{html: html, storedAt: time.Now()}
}
