// Package model 定义了控制台会话、对话与管理工作流使用的数据结构。
package model

// Role 决定会话可用的操作与快捷短语目录。
type Role string

const (
	RolePatient Role = "patient"
	RoleVisitor Role = "visitor"
	RoleStaff   Role = "staff"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleVisitor, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// RequiresProfile 为 true 时，选择角色后需要先填写姓名（患者还需电话）。
func (r Role) RequiresProfile() bool {
	return r == RolePatient || r == RoleVisitor
}

// Privileged 角色在启用认证时需要操作员令牌。
func (r Role) Privileged() bool {
	return r == RoleStaff || r == RoleAdmin
}

// Label 返回用于欢迎语与显示名的角色名称。
func (r Role) Label() string {
	switch r {
	case RolePatient:
		return "Patient"
	case RoleVisitor:
		return "Visitor"
	case RoleStaff:
		return "Staff"
	case RoleAdmin:
		return "Admin"
	}
	return string(r)
}
