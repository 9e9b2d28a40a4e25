package rest

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (s *Server) register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed body")
	}
	if err := validate.Struct(req); err != nil {
		return err
	}

	token, err := s.authSvc.Register(req.Email, req.Name, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, tokenResponse{Token: string(token)})
}

func (s *Server) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed body")
	}
	if err := validate.Struct(req); err != nil {
		return err
	}

	token, err := s.authSvc.Login(req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tokenResponse{Token: string(token)})
}
