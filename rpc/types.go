// Package rpc defines JSON-RPC 2.0 wire format types for WebSocket communication.
// These types represent the params and result structures for all RPC methods.
package rpc

import (
	"github.com/traineemgr/server/gallery"
	"github.com/traineemgr/server/training"
)

// Client → Server

type AuthParams struct {
	Token string `json:"token"`
}

type AuthResult struct {
	Version     string `json:"version"`
	TraineeRoot string `json:"trainee_root"`
	Remote      bool   `json:"remote"`
}

// Trainee namespace

type TraineeListResult struct {
	Trainees []string `json:"trainees"`
}

type TraineeAddParams struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type TraineeAddResult struct {
	Folder string `json:"folder"`
}

// Training namespace

type TrainingStartParams struct {
	Trainee string `json:"trainee"`
	Name    string `json:"name"`
}

type TrainingStartResult struct {
	Session training.Session `json:"session"`
}

type TrainingStopResult struct {
	Seconds int64  `json:"seconds"`
	Display string `json:"display"`
}

// Gallery namespace

type ImageParams struct {
	Name string `json:"name"`
}

type CommentParams struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

type CommentLastParams struct {
	Text string `json:"text"`
}

type ImageResult struct {
	Image gallery.Image `json:"image"`
}

// Debrief namespace

type DebriefStartResult struct {
	Link   string `json:"link"`
	Images int    `json:"images"`
}

// Events namespace

type SubscribeResult struct {
	ID     string          `json:"id"`
	Status training.Status `json:"status"`
}

type UnsubscribeParams struct {
	ID string `json:"id"`
}
