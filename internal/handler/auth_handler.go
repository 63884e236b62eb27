package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/cleanops/internal/db"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const currentUserKey = "__current_user"

type loginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login 校验用户名密码并写入会话
func (a *API) Login(c *gin.Context) {
	var payload loginPayload
	if strings.Contains(c.GetHeader("Content-Type"), "application/json") {
		if !bindJSON(c, &payload, "Некорректный запрос") {
			return
		}
	} else {
		payload.Username = c.PostForm("username")
		payload.Password = c.PostForm("password")
	}

	// 查找用户
	var user db.User
	if err := a.db.Where("username = ?", strings.TrimSpace(payload.Username)).First(&user).Error; err != nil {
		respondError(c, http.StatusUnauthorized, "Неверный логин или пароль")
		return
	}

	// 验证密码
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(payload.Password)); err != nil {
		respondError(c, http.StatusUnauthorized, "Неверный логин или пароль")
		return
	}

	session := sessions.Default(c)
	session.Set("user_id", user.ID)
	session.Set("username", user.Username)
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "Не удалось сохранить сессию")
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": userToPayload(user)})
}

// Logout 清除会话
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()
	c.JSON(http.StatusOK, gin.H{"logged_out": true})
}

// Me 返回当前登录用户
func (a *API) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": userToPayload(currentUser(c))})
}

// AuthRequired 校验会话并把当前用户放入上下文
func (a *API) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID, ok := session.Get("user_id").(uint)
		if !ok || userID == 0 {
			respondError(c, http.StatusUnauthorized, "Требуется вход")
			c.Abort()
			return
		}

		var user db.User
		if err := a.db.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				session.Clear()
				session.Save()
				respondError(c, http.StatusUnauthorized, "Требуется вход")
			} else {
				respondError(c, http.StatusInternalServerError, "Не удалось загрузить пользователя")
			}
			c.Abort()
			return
		}

		c.Set(currentUserKey, user)
		c.Next()
	}
}

// AdminRequired 只允许管理员访问
func (a *API) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentUser(c).Role != db.RoleAdmin {
			respondError(c, http.StatusForbidden, "Доступно только администратору")
			c.Abort()
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) db.User {
	if value, exists := c.Get(currentUserKey); exists {
		if user, ok := value.(db.User); ok {
			return user
		}
	}
	return db.User{}
}

func userToPayload(user db.User) gin.H {
	return gin.H{
		"id":           user.ID,
		"username":     user.Username,
		"display_name": user.DisplayName,
		"role":         user.Role,
	}
}
