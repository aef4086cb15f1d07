package user

type User struct {
	Username      string `json:"username"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified"`
	Password      []byte `json:"-"`
	Id            string `json:"id"`
}

// Author is the public part of a user embedded in posts and comments.
type Author struct {
	Id       string `json:"id"`
	Username string `json:"username"`
}

func (u *User) Author() Author {
	return Author{Id: u.Id, Username: u.Username}
}
