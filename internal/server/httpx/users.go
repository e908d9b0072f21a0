package httpx

import (
	"net/http"

	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
	"github.com/dmitrijs2005/taskkeeper/internal/server/services"
)

type registerRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Email     *string `json:"email"`
}

func (p profileRequest) update() services.ProfileUpdate {
	return services.ProfileUpdate{FirstName: p.FirstName, LastName: p.LastName, Email: p.Email}
}

type passwordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type adminUserRequest struct {
	profileRequest
	Role     *string `json:"role"`
	IsActive *bool   `json:"isActive"`
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	res, err := a.users.Register(r.Context(), services.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{
		"message": "User registered successfully",
		"token":   res.Token,
		"user":    res.User.View(),
	})
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	res, err := a.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"message": "Login successful",
		"token":   res.Token,
		"user":    res.User.View(),
	})
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	if err := a.users.Logout(r.Context(), PrincipalFrom(r.Context())); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "Logged out successfully"})
}

func (a *API) profile(w http.ResponseWriter, r *http.Request) {
	user, err := a.users.Profile(r.Context(), PrincipalFrom(r.Context()))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "Profile retrieved successfully", "user": user.View()})
}

func (a *API) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	user, err := a.users.UpdateProfile(r.Context(), PrincipalFrom(r.Context()), req.update())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "Profile updated successfully", "user": user.View()})
}

func (a *API) deleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := a.users.DeleteSelf(r.Context(), PrincipalFrom(r.Context())); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "Account deleted successfully"})
}

func (a *API) changePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	err := a.users.ChangePassword(r.Context(), PrincipalFrom(r.Context()), req.CurrentPassword, req.NewPassword)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "Password updated successfully"})
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	filter := models.UserFilter{
		Search:   r.URL.Query().Get("search"),
		IsActive: queryBool(r, "isActive"),
		Page:     models.Page{Number: queryInt(r, "page"), Limit: queryInt(r, "limit")},
	}
	filter.Page.Normalize()

	users, total, err := a.users.ListUsers(r.Context(), PrincipalFrom(r.Context()), filter)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	views := make([]models.UserView, 0, len(users))
	for _, u := range users {
		views = append(views, u.View())
	}
	writeJSON(w, http.StatusOK, envelope{
		"message": "Users retrieved successfully",
		"users":   views,
		"pagination": envelope{
			"currentPage":  filter.Number,
			"totalPages":   filter.TotalPages(total),
			"totalUsers":   total,
			"usersPerPage": filter.Limit,
		},
	})
}

func (a *API) systemStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.users.SystemStats(r.Context(), PrincipalFrom(r.Context()))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"message": "System statistics retrieved successfully",
		"users":   stats.Users,
		"tasks":   newTaskStatsView(stats.Tasks),
	})
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request) {
	user, stats, err := a.users.GetUser(r.Context(), PrincipalFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"message": "User retrieved successfully",
		"user":    user.View(),
		"taskStats": envelope{
			"totalTasks": stats.Total,
			"pending":    stats.ByStatus[models.StatusPending],
			"inProgress": stats.ByStatus[models.StatusInProgress],
			"completed":  stats.ByStatus[models.StatusCompleted],
		},
	})
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request) {
	var req adminUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	user, err := a.users.UpdateUser(r.Context(), PrincipalFrom(r.Context()), r.PathValue("id"), services.AdminUserUpdate{
		ProfileUpdate: req.update(),
		Role:          req.Role,
		IsActive:      req.IsActive,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "User updated successfully", "user": user.View()})
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.users.DeleteUser(r.Context(), PrincipalFrom(r.Context()), id); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "User deleted successfully", "id": id})
}
