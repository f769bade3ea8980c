package customer

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockCustomerRepository struct {
	mock.Mock
}

func (_m *MockCustomerRepository) Insert(ctx context.Context, customer *Customer) error {
	ret := _m.Called(ctx, customer)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, *Customer) error); ok {
		r0 = rf(ctx, customer)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

func (_m *MockCustomerRepository) Update(ctx context.Context, customer *Customer) error {
	ret := _m.Called(ctx, customer)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, *Customer) error); ok {
		r0 = rf(ctx, customer)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

func (_m *MockCustomerRepository) FindByID(ctx context.Context, customerID int64) (*Customer, error) {
	ret := _m.Called(ctx, customerID)

	var r0 *Customer
	if rf, ok := ret.Get(0).(func(context.Context, int64) *Customer); ok {
		r0 = rf(ctx, customerID)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*Customer)
		}
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, int64) error); ok {
		r1 = rf(ctx, customerID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

func (_m *MockCustomerRepository) FindByNameAndStatus(ctx context.Context, name string, status Status) (*Customer, error) {
	ret := _m.Called(ctx, name, status)

	var r0 *Customer
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*Customer)
	}

	return r0, ret.Error(1)
}

func (_m *MockCustomerRepository) FindByNameAndStatusExcludingID(ctx context.Context, name string, status Status, excludeID int64) (*Customer, error) {
	ret := _m.Called(ctx, name, status, excludeID)

	var r0 *Customer
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*Customer)
	}

	return r0, ret.Error(1)
}

func (_m *MockCustomerRepository) FindAll(ctx context.Context, filter Filter, page PageRequest) (*Page, error) {
	ret := _m.Called(ctx, filter, page)

	var r0 *Page
	if rf, ok := ret.Get(0).(func(context.Context, Filter, PageRequest) *Page); ok {
		r0 = rf(ctx, filter, page)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*Page)
		}
	}

	return r0, ret.Error(1)
}

func (_m *MockCustomerRepository) CountByStatus(ctx context.Context) (map[Status]int64, error) {
	ret := _m.Called(ctx)

	var r0 map[Status]int64
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(map[Status]int64)
	}

	return r0, ret.Error(1)
}

var _ CustomerRepository = (*MockCustomerRepository)(nil)
