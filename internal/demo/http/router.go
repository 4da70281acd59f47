package http

import "github.com/gin-gonic/gin"

// Register attaches the demo routes to rg. createLimits runs only on the two
// routes that provision projects; cleanupAuth, when set, guards cleanup.
func (h *Handler) Register(rg *gin.RouterGroup, createLimits []gin.HandlerFunc, cleanupAuth gin.HandlerFunc) {
	rg.POST("/start", chain(createLimits, h.StartDemo)...)
	rg.POST("/start-custom", chain(createLimits, h.StartCustomDemo)...)

	if cleanupAuth != nil {
		rg.POST("/cleanup", cleanupAuth, h.Cleanup)
	} else {
		rg.POST("/cleanup", h.Cleanup)
	}

	rg.POST("/status", h.Status)
	rg.GET("/boilerplates", h.ListBoilerplates)
}

func chain(mw []gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(mw)+1)
	out = append(out, mw...)
	return append(out, handler)
}
