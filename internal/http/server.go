// Package http exposes the read-only status API over the drive ledger.
package http

import (
	"github.com/gin-gonic/gin"
)

// Server owns the gin engine behind the status API.
type Server struct {
	Engine *gin.Engine
}

func NewServer(cfg RouterConfig) *Server {
	return &Server{Engine: NewRouter(cfg)}
}

// Run blocks serving HTTP on the given address.
func (s *Server) Run(address string) error {
	return s.Engine.Run(address)
}
