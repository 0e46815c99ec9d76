package httpapi

import (
	"github.com/gin-gonic/gin"
)

// Server wraps the gin engine behind the core's own lifecycle.
type Server struct {
	Engine *gin.Engine
}

// NewServer builds a Server from a RouterConfig.
func NewServer(cfg RouterConfig) *Server {
	return &Server{Engine: NewRouter(cfg)}
}

// Run blocks serving HTTP on address.
func (s *Server) Run(address string) error {
	return s.Engine.Run(address)
}
