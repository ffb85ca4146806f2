package service

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/meshworks/manifold/src/node"
	"github.com/sirupsen/logrus"
)

// Service ...
type Service struct {
	sync.Mutex

	bindAddress string
	node        *node.Node
	logger      *logrus.Entry
}

// NewService ...
func NewService(bindAddress string, n *node.Node, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		node:        n,
		logger:      logger,
	}

	service.registerHandlers()

	return &service
}

// registerHandlers registers the API handlers with the DefaultServerMux of
// the http package. It is possible that another server in the same process
// is simultaneously using the DefaultServerMux. In which case, the handlers
// will be accessible from both servers.
func (s *Service) registerHandlers() {
	s.logger.Debug("Registering API handlers")
	http.HandleFunc("/stats", s.makeHandler(s.GetStats))
	http.HandleFunc("/artifacts", s.makeHandler(s.GetArtifacts))
	http.HandleFunc("/artifacts/", s.makeHandler(s.GetArtifact))
	http.HandleFunc("/peers", s.makeHandler(s.GetPeers))
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Serve calls ListenAndServe. This is a blocking call. It is not necessary
// to call Serve when another server has already been started with the
// DefaultServerMux and the same address:port combination; the handlers have
// already been registered when the service was instantiated.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving API")

	// Use the DefaultServerMux
	err := http.ListenAndServe(s.bindAddress, nil)
	if err != nil {
		s.logger.Error(err)
	}
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := s.node.GetStats()

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(stats)
}

// GetArtifacts returns every stored artifact.
func (s *Service) GetArtifacts(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(s.node.GetArtifacts())
}

// GetArtifact returns one artifact by hash.
func (s *Service) GetArtifact(w http.ResponseWriter, r *http.Request) {
	hash := r.URL.Path[len("/artifacts/"):]

	a, ok := s.node.GetArtifact(hash)
	if !ok {
		s.logger.WithField("hash", hash).Debug("Artifact not found")

		http.Error(w, "artifact not found", http.StatusNotFound)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(a)
}

// GetPeers ...
func (s *Service) GetPeers(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(s.node.GetPeers())
}
