package handlers

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"bulkedit-admin/pkg/models"
	"bulkedit-admin/pkg/services"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// CatalogHandler はストアのステータスと商品一覧のハンドラです。
type CatalogHandler struct {
	svc *Services
}

// NewCatalogHandler は新しいCatalogHandlerを生成します。
func NewCatalogHandler(svc *Services) *CatalogHandler {
	return &CatalogHandler{svc: svc}
}

// GetStatus はステータスを問い合わせます。パネルはこれをポーリングして同期の進捗を表示します。
func (h *CatalogHandler) GetStatus(c *gin.Context) {
	sess, err := h.svc.Catalog.RefreshStatus(c.Request.Context(), sessionID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "session": sessionView(sess)})
}

// GetDashboard はステータスと商品一覧をまとめて返します。片方が失敗しても、もう片方の結果は返します。
func (h *CatalogHandler) GetDashboard(c *gin.Context) {
	sess, errs := h.svc.Catalog.Dashboard(c.Request.Context(), sessionID(c))
	if sess == nil {
		respondError(c, errs[len(errs)-1])
		return
	}
	messages := make([]string, 0, len(errs))
	for _, err := range errs {
		messages = append(messages, userMessage(err))
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  len(errs) == 0,
		"session":  sessionView(sess),
		"products": services.VisibleProducts(sess),
		"errors":   messages,
	})
}

// ListProducts は商品一覧を返します。?search= でバックエンド検索、?refresh=true で再取得します。
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	force := c.Query("refresh") == "true"
	sess, err := h.svc.Catalog.LoadProducts(c.Request.Context(), sessionID(c), c.Query("search"), force)
	if err != nil {
		respondError(c, err)
		return
	}
	products := services.VisibleProducts(sess)
	c.JSON(http.StatusOK, gin.H{"success": true, "products": products, "count": len(products), "filter": sess.Filter})
}

// FilterProducts は取得済みの一覧にフィルターを適用します。ネットワークには出ません。
func (h *CatalogHandler) FilterProducts(c *gin.Context) {
	var filter models.FilterState
	if err := c.ShouldBindJSON(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "filtro inválido"})
		return
	}
	sess, err := h.svc.Catalog.ApplyFilter(sessionID(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "products": sess.Filtered, "count": len(sess.Filtered), "filter": sess.Filter})
}

// ClearFilter はフィルターを解除します。
func (h *CatalogHandler) ClearFilter(c *gin.Context) {
	sess, err := h.svc.Catalog.ClearFilter(sessionID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "products": sess.Products, "count": len(sess.Products)})
}

// ExportProducts は表示中の商品をExcelで返します。
func (h *CatalogHandler) ExportProducts(c *gin.Context) {
	sess, err := h.svc.Store.Get(sessionID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	f, err := h.svc.Export.Products(services.VisibleProducts(sess))
	if err != nil {
		log.Printf("❌ [export] products: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Erro ao gerar a planilha."})
		return
	}
	writeWorkbook(c, f, fmt.Sprintf("produtos-%s-%s.xlsx", sess.StoreID, time.Now().Format("20060102")))
}

func writeWorkbook(c *gin.Context, f *excelize.File, filename string) {
	defer f.Close()
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", xlsxContentType)
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		log.Printf("❌ [export] write %s: %v", filename, err)
	}
}
