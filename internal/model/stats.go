package model

// Stats is a point-in-time snapshot of platform counts.
type Stats struct {
	TotalUsers     int         `json:"total_users"`
	ActiveUsers    int         `json:"active_users"`
	TotalBlogs     int         `json:"total_blogs"`
	ActiveInvites  int         `json:"active_invites"`
	BlogsThisMonth int         `json:"blogs_this_month"`
	UsersThisMonth int         `json:"users_this_month"`
	InviteUsage    InviteUsage `json:"invite_usage"`
}

// InviteUsage breaks invite codes down by state.
type InviteUsage struct {
	Total     int `json:"total"`
	Used      int `json:"used"`
	Expired   int `json:"expired"`
	Available int `json:"available"`
}
