package models

// RegisterRestaurantRequest is the body of POST /restaurants
type RegisterRestaurantRequest struct {
	RestaurantName string `json:"restaurantName"`
	ManagerName    string `json:"managerName"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Address        string `json:"address"`
}
