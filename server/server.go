// Package server exposes box inspection and FLV transmuxing over HTTP.
package server

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"

	"github.com/ugparu/bmff/format/isobmff"
	"github.com/ugparu/bmff/transmuxer"
	"github.com/ugparu/bmff/utils/logger"
)

// uploadField is the multipart form field holding the uploaded file.
const uploadField = "file"

// resultsBuffer is the number of segments the transmux stream may run ahead
// of the handler.
const resultsBuffer = 16

type Server struct {
	server    *http.Server
	router    *gin.Engine
	maxUpload int64
	startOnce *sync.Once
	closeOnce *sync.Once
	deadChan  chan any
}

// New returns a server listening on addr. Request bodies larger than
// maxUpload bytes are rejected.
func New(addr string, maxUpload int64) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.MaxMultipartMemory = maxUpload
	router.Use(
		func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, accept, origin, Cache-Control, X-Requested-With")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusOK)
				return
			}
			c.Next()
		})
	router.Use(gin.Recovery())
	pprof.Register(router)

	s := &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: router,
		},
		router:    router,
		maxUpload: maxUpload,
		deadChan:  make(chan any),
		startOnce: &sync.Once{},
		closeOnce: &sync.Once{},
	}

	router.GET("/healthz", s.health)
	api := router.Group("/api", s.limitBody)
	api.POST("/inspect", s.inspect)
	api.POST("/transmux", s.transmux)

	logger.Debug(s, "Initialized and set up")
	return s
}

func (s *Server) String() string {
	return "HTTP_SERVER"
}

// Handler returns the router serving all routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Close is called. It blocks.
func (s *Server) Start() {
	err := errors.New("HTTP server has been started already")
	s.startOnce.Do(func() {
		defer close(s.deadChan)

		logger.Infof(s, "Starting listening on %s", s.server.Addr)
		if err = s.server.ListenAndServe(); err != nil {
			logger.Warning(s, err.Error())
			err = nil
		}
	})
	if err != nil {
		logger.Error(s, err.Error())
	}
}

func (s *Server) Close() {
	s.closeOnce.Do(func() {
		logger.Warning(s, "Stopping and closing")
		if err := s.server.Close(); err != nil {
			logger.Error(s, err.Error())
		}
	})
}

// Dead is closed when Start returns.
func (s *Server) Dead() <-chan any {
	return s.deadChan
}

func (s *Server) limitBody(c *gin.Context) {
	if c.Request.ContentLength > s.maxUpload {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload too large"})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)
	c.Next()
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// upload returns the uploaded file, either the "file" field of a multipart
// form or the raw request body.
func upload(c *gin.Context) (io.ReadCloser, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return c.Request.Body, nil
	}
	fh, err := c.FormFile(uploadField)
	if err != nil {
		return nil, err
	}
	return fh.Open()
}

// fail writes err as a JSON error, with 413 for oversized bodies.
func (s *Server) fail(c *gin.Context, status int, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	logger.Infof(s, "%s %s: %s", c.Request.Method, c.Request.URL.Path, err.Error())
	c.JSON(status, gin.H{"error": err.Error()})
}

func (s *Server) inspect(c *gin.Context) {
	body, err := upload(c)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	defer body.Close()

	var buf bytes.Buffer
	if _, err = buf.ReadFrom(body); err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	data := buf.Bytes()

	// Media segments have no ftyp, so they fall back to a flat box list.
	if f, err := isobmff.ReadFile(data); err == nil {
		c.JSON(http.StatusOK, gin.H{"size": len(data), "boxes": isobmff.SummarizeFile(f)})
		return
	}
	boxes, err := isobmff.ReadBoxes(data)
	if err != nil {
		s.fail(c, http.StatusUnprocessableEntity, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"size": len(data), "boxes": isobmff.SummarizeBoxes(boxes)})
}

type trackJSON struct {
	TrackID    uint32  `json:"track_id"`
	Codec      string  `json:"codec"`
	Timescale  uint32  `json:"timescale"`
	Bitrate    uint32  `json:"bitrate,omitempty"`
	Width      uint    `json:"width,omitempty"`
	Height     uint    `json:"height,omitempty"`
	FrameRate  float64 `json:"frame_rate,omitempty"`
	SampleRate int     `json:"sample_rate,omitempty"`
	Channels   uint8   `json:"channels,omitempty"`
}

func newTrackJSON(t *transmuxer.TrackSettings) *trackJSON {
	if t == nil {
		return nil
	}
	return &trackJSON{
		TrackID:    t.TrackID,
		Codec:      t.CodecString(),
		Timescale:  t.Timescale,
		Bitrate:    t.Bitrate,
		Width:      t.Width,
		Height:     t.Height,
		FrameRate:  t.FrameRate,
		SampleRate: t.SampleRate,
		Channels:   t.Channels,
	}
}

type initJSON struct {
	Size  int        `json:"size"`
	Video *trackJSON `json:"video,omitempty"`
	Audio *trackJSON `json:"audio,omitempty"`
}

type segmentJSON struct {
	Type      string `json:"type"`
	Keyframe  bool   `json:"keyframe"`
	Timestamp uint64 `json:"timestamp"`
	Size      int    `json:"size"`
}

type transmuxJSON struct {
	Init     *initJSON     `json:"init"`
	Segments []segmentJSON `json:"segments"`
}

func (s *Server) transmux(c *gin.Context) {
	body, err := upload(c)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	defer body.Close()

	stream := transmuxer.NewStream(body, resultsBuffer)
	stream.Start()
	defer stream.Close()

	resp := transmuxJSON{Segments: []segmentJSON{}}
	for res := range stream.Results() {
		if init := res.Init; init != nil {
			resp.Init = &initJSON{
				Size:  len(init.Data),
				Video: newTrackJSON(init.Video),
				Audio: newTrackJSON(init.Audio),
			}
			continue
		}
		resp.Segments = append(resp.Segments, segmentJSON{
			Type:      res.Media.Type.String(),
			Keyframe:  res.Media.Keyframe,
			Timestamp: res.Media.Timestamp,
			Size:      len(res.Media.Data),
		})
	}
	<-stream.Done()
	if err = stream.Err(); err != nil {
		s.fail(c, http.StatusUnprocessableEntity, err)
		return
	}
	if resp.Init == nil {
		s.fail(c, http.StatusUnprocessableEntity, errors.New("no sequence headers in stream"))
		return
	}
	logger.Infof(s, "Transmuxed %d segments", len(resp.Segments))
	c.JSON(http.StatusOK, resp)
}
