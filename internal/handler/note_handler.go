package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lifelog/internal/db"
	"github.com/lifelog/internal/service"
)

type notePayload struct {
	Title   string `json:"title"`
	Slug    string `json:"slug"`
	Content string `json:"content"`
}

// ListNotes 返回笔记列表
func (a *API) ListNotes(c *gin.Context) {
	notes, err := a.notes.List()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取笔记列表失败")
		return
	}

	items := make([]gin.H, 0, len(notes))
	for _, note := range notes {
		items = append(items, gin.H{
			"id":         note.ID,
			"title":      note.Title,
			"slug":       note.Slug,
			"updated_at": note.UpdatedAt.Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, gin.H{"notes": items})
}

// GetNote 返回笔记详情，包含渲染后的 HTML、外链与反向链接
func (a *API) GetNote(c *gin.Context) {
	note, err := a.noteFromPath(c)
	if err != nil {
		handleNoteError(c, err)
		return
	}

	rendered, err := a.notes.Render(note.Content)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "笔记渲染失败")
		return
	}

	links, err := a.notes.Links(note.ID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取笔记链接失败")
		return
	}

	backlinks, err := a.notes.Backlinks(note.Slug)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取反向链接失败")
		return
	}

	backlinkItems := make([]gin.H, 0, len(backlinks))
	for _, source := range backlinks {
		backlinkItems = append(backlinkItems, gin.H{"id": source.ID, "title": source.Title, "slug": source.Slug})
	}

	c.JSON(http.StatusOK, gin.H{"note": gin.H{
		"id":        note.ID,
		"title":     note.Title,
		"slug":      note.Slug,
		"content":   note.Content,
		"html":      rendered,
		"links":     links,
		"backlinks": backlinkItems,
	}})
}

// CreateNote 创建笔记
func (a *API) CreateNote(c *gin.Context) {
	var payload notePayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	note, err := a.notes.Create(service.NoteInput{Title: payload.Title, Slug: payload.Slug, Content: payload.Content})
	if err != nil {
		handleNoteError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"note": gin.H{"id": note.ID, "title": note.Title, "slug": note.Slug}})
}

// UpdateNote 更新笔记
func (a *API) UpdateNote(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的笔记ID")
		return
	}

	var payload notePayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	note, err := a.notes.Update(id, service.NoteInput{Title: payload.Title, Slug: payload.Slug, Content: payload.Content})
	if err != nil {
		handleNoteError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"note": gin.H{"id": note.ID, "title": note.Title, "slug": note.Slug}})
}

// DeleteNote 将笔记移入回收站
func (a *API) DeleteNote(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的笔记ID")
		return
	}

	if err := a.notes.Delete(id); err != nil {
		respondError(c, http.StatusInternalServerError, "删除笔记失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// noteFromPath 支持数字 ID 和 slug 两种寻址方式
func (a *API) noteFromPath(c *gin.Context) (*db.Note, error) {
	if id, err := parseUintParam(c, "id"); err == nil {
		return a.notes.Get(id)
	}
	return a.notes.GetBySlug(c.Param("id"))
}

func handleNoteError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNoteNotFound):
		respondError(c, http.StatusNotFound, "笔记不存在")
	case errors.Is(err, service.ErrNoteSlugTaken):
		respondError(c, http.StatusConflict, "笔记别名已被占用")
	default:
		respondError(c, http.StatusBadRequest, "笔记操作失败")
	}
}
