package database

import (
	"github.com/stretchr/testify/mock"
)

type MockCallRepository struct {
	mock.Mock
}

func (m *MockCallRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockCallRepository) CreateAccount(params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockCallRepository) GetAccountById(userId int) (User, error) {
	args := m.Called(userId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockCallRepository) GetAccountByEmail(email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockCallRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	args := m.Called(params)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockCallRepository) GetRoomByCode(code string) (Room, error) {
	args := m.Called(code)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockCallRepository) ListRoomsByHost(hostId int) ([]Room, error) {
	args := m.Called(hostId)
	return args.Get(0).([]Room), args.Error(1)
}
func (m *MockCallRepository) EndRoom(roomId int) error {
	args := m.Called(roomId)
	return args.Error(0)
}
