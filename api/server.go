package api

import (
	"net/http"

	"github.com/rom8726/resflow"
)

type Server struct {
	engine         resflow.IEngine
	extractActorFn ExtractActorFn
	plugins        []Plugin
}

func NewServer(engine resflow.IEngine, extractActorFn ExtractActorFn, plugins ...Plugin) *Server {
	return &Server{
		engine:         engine,
		extractActorFn: extractActorFn,
		plugins:        plugins,
	}
}

func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()

	RegisterCoreRoutes(mux, s.engine, s.extractActorFn)

	for _, plugin := range s.plugins {
		plugin.RegisterRoutes(mux)
	}

	return mux
}

// HeaderActor reads the actor from X-Resflow-User. It suits trusted proxies
// and tests; production hosts supply their own ExtractActorFn.
func HeaderActor(req *http.Request) (resflow.Actor, error) {
	return resflow.Actor{Identity: req.Header.Get("X-Resflow-User")}, nil
}
