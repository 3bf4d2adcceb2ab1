package api

import (
	"encoding/json"
	"errors"
	"strings"
)

var ErrReportNotFound = errors.New("report not found")

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type GraphQLError struct {
	Message string `json:"message"`
}

type GraphQLErrors []GraphQLError

func (e GraphQLErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, m := range e {
		msgs = append(msgs, m.Message)
	}
	return "graphql: " + strings.Join(msgs, "; ")
}

// graphQLEnvelope splits a response into the typed body and its errors.
type graphQLEnvelope[T any] struct {
	Body   T
	Errors GraphQLErrors
}

func (e *graphQLEnvelope[T]) UnmarshalJSON(b []byte) error {
	var raw struct {
		Errors GraphQLErrors `json:"errors"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	e.Errors = raw.Errors
	return json.Unmarshal(b, &e.Body)
}

type reportBundleResponse struct {
	Data struct {
		ReportData struct {
			Report *ReportBundle `json:"report"`
		} `json:"reportData"`
	} `json:"data"`
}

type ReportBundle struct {
	Code      string `json:"code"`
	Title     string `json:"title"`
	StartTime int64  `json:"startTime"`
	EndTime   int64  `json:"endTime"`
	Owner     *struct {
		Name string `json:"name"`
	} `json:"owner"`
	Zone *struct {
		Name string `json:"name"`
	} `json:"zone"`
	Fights     []FightData `json:"fights"`
	MasterData *struct {
		Actors []Actor `json:"actors"`
	} `json:"masterData"`
}

type FightData struct {
	ID              int    `json:"id"`
	EncounterID     int    `json:"encounterID"`
	Name            string `json:"name"`
	Difficulty      *int   `json:"difficulty"`
	StartTime       int64  `json:"startTime"`
	EndTime         int64  `json:"endTime"`
	FriendlyPlayers []int  `json:"friendlyPlayers"`
	Kill            *bool  `json:"kill"`
}

type Actor struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Server  string `json:"server"`
	SubType string `json:"subType"`
	Type    string `json:"type"`
}
