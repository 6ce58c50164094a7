package validation

import (
	"errors"
	"testing"

	"github.com/hitoshi/animetracker/internal/model"
)

func ptrFloat(f float64) *float64 { return &f }

func validCreateInput() model.CreateAnimeInput {
	return model.CreateAnimeInput{
		Name:        "Naruto",
		ImageURL:    "u",
		VoteAverage: ptrFloat(8.5),
		Status:      model.StatusWatching,
		Genres:      []model.Genre{},
	}
}

func TestValidateCreateAnime_AcceptsAllStatuses(t *testing.T) {
	for _, s := range model.WatchStatuses() {
		in := validCreateInput()
		in.Status = s
		if err := ValidateCreateAnime(in); err != nil {
			t.Errorf("status %q: unexpected error: %v", s, err)
		}
	}
}

func TestValidateCreateAnime_RejectsUnknownStatus(t *testing.T) {
	in := validCreateInput()
	in.Status = "invalid_status"

	err := ValidateCreateAnime(in)
	if !errors.Is(err, model.ErrValidationFailed) {
		t.Fatalf("error = %v, want ValidationFailed", err)
	}
	var appErr *model.AppError
	errors.As(err, &appErr)
	if appErr.Message != InvalidStatusMessage {
		t.Errorf("Message = %q, want %q", appErr.Message, InvalidStatusMessage)
	}
}

func TestValidateCreateAnime_VoteAverageBounds(t *testing.T) {
	tests := []struct {
		name    string
		vote    *float64
		wantErr bool
	}{
		{"nil", nil, false},
		{"zero", ptrFloat(0), false},
		{"ten", ptrFloat(10), false},
		{"negative", ptrFloat(-0.1), true},
		{"above ten", ptrFloat(10.01), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validCreateInput()
			in.VoteAverage = tt.vote
			err := ValidateCreateAnime(in)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCreateAnime_CollectsAllFieldErrors(t *testing.T) {
	err := ValidateCreateAnime(model.CreateAnimeInput{Status: "bogus", VoteAverage: ptrFloat(11)})

	var appErr *model.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("error = %v, want *model.AppError", err)
	}
	// name, image_url, vote_average, status
	if len(appErr.Fields) != 4 {
		t.Errorf("len(Fields) = %d, want 4: %+v", len(appErr.Fields), appErr.Fields)
	}
}

func TestValidateRegister_BlankFields(t *testing.T) {
	err := ValidateRegister(model.RegisterInput{Email: "a@x.com", Password: "  ", Username: ""})

	var appErr *model.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("error = %v, want *model.AppError", err)
	}
	if len(appErr.Fields) != 2 {
		t.Errorf("len(Fields) = %d, want 2", len(appErr.Fields))
	}
}

func TestValidateLogin(t *testing.T) {
	if err := ValidateLogin(model.LoginInput{Email: "a@x.com", Password: "pw123"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateLogin(model.LoginInput{Email: "a@x.com"}); err == nil {
		t.Error("expected error for missing password")
	}
}

func TestValidateUpdateAnime(t *testing.T) {
	empty := ""
	bad := model.WatchStatus("later")
	good := model.StatusDropped

	tests := []struct {
		name    string
		in      model.UpdateAnimeInput
		wantErr bool
	}{
		{"no fields", model.UpdateAnimeInput{}, true},
		{"blank name", model.UpdateAnimeInput{Name: &empty}, true},
		{"vote out of range", model.UpdateAnimeInput{VoteAverage: ptrFloat(42)}, true},
		{"bad status", model.UpdateAnimeInput{Status: &bad}, true},
		{"good status", model.UpdateAnimeInput{Status: &good}, false},
		{"vote only", model.UpdateAnimeInput{VoteAverage: ptrFloat(7)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUpdateAnime(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateStatus(t *testing.T) {
	if err := ValidateStatus(model.StatusCompleted); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateStatus("finished"); !errors.Is(err, model.ErrValidationFailed) {
		t.Errorf("error = %v, want ValidationFailed", err)
	}
}
