package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lifelog/internal/service"
)

// ListTrash 返回回收站内容
func (a *API) ListTrash(c *gin.Context) {
	items, err := a.trash.List(requestTime(c))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取回收站失败")
		return
	}

	payload := make([]gin.H, 0, len(items))
	for _, item := range items {
		payload = append(payload, gin.H{
			"kind":       item.Kind,
			"id":         item.ID,
			"title":      item.Title,
			"deleted_at": item.DeletedAt.Format(time.RFC3339),
			"purgeable":  item.Purgeable,
		})
	}

	c.JSON(http.StatusOK, gin.H{"items": payload})
}

// RestoreTrashItem 从回收站恢复实体
func (a *API) RestoreTrashItem(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的条目ID")
		return
	}

	if err := a.trash.Restore(c.Param("kind"), id); err != nil {
		switch {
		case errors.Is(err, service.ErrTrashKindUnknown):
			respondError(c, http.StatusBadRequest, "不支持的条目类型")
		case errors.Is(err, service.ErrTrashItemNotFound):
			respondError(c, http.StatusNotFound, "回收站内找不到该条目")
		default:
			respondError(c, http.StatusInternalServerError, "恢复失败")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"restored": true})
}

// PurgeTrash 清除保留期已满的软删除实体
func (a *API) PurgeTrash(c *gin.Context) {
	purged, err := a.trash.PurgeExpired(requestTime(c))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "清除失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"purged": purged})
}
