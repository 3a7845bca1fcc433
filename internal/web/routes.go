package web

import (
	"github.com/kozaktomas/facerec/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	maxUpload := s.config.Web.MaxUploadBytes()

	healthHandler := handlers.NewHealthHandler(s.manager)
	facesHandler := handlers.NewFacesHandler(s.manager, maxUpload, s.logger)
	recognizeHandler := handlers.NewRecognizeHandler(s.manager, s.rosters, maxUpload, s.logger)

	s.router.Get("/health", healthHandler.Check)

	// Recognition
	s.router.Post("/", recognizeHandler.Recognize)
	s.router.Post("/identify", recognizeHandler.Identify)
	s.router.Post("/candidates", recognizeHandler.Candidates)
	s.router.Post("/encoding", recognizeHandler.Encode)

	// Catalog management
	s.router.Get("/faces", facesHandler.List)
	s.router.Post("/faces", facesHandler.Add)
	s.router.Delete("/faces", facesHandler.Remove)
}
