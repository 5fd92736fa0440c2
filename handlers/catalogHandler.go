package handlers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"github.com/gin-gonic/gin"
)

func listProducts(c *gin.Context) {
	limit, after := pageParams(c)
	page, err := models.PaginateProducts(c.Request.Context(), limit, after, c.Query("q"))
	if err != nil {
		respondError(c, "listProducts", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func getProduct(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	product, err := models.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, "getProduct", err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func createProduct(c *gin.Context) {
	var input models.NewProduct
	if !bindJSON(c, &input) {
		return
	}
	product, err := models.CreateProduct(c.Request.Context(), &input)
	if err != nil {
		respondError(c, "createProduct", err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func updateProduct(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input models.NewProduct
	if !bindJSON(c, &input) {
		return
	}
	product, err := models.UpdateProduct(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, "updateProduct", err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func deleteProduct(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	product, err := models.DeleteProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, "deleteProduct", err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func toggleProduct(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req toggleActiveRequest
	if !bindJSON(c, &req) {
		return
	}
	product, err := models.ToggleActiveProduct(c.Request.Context(), id, *req.IsActive)
	if err != nil {
		respondError(c, "toggleProduct", err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func listCustomers(c *gin.Context) {
	limit, after := pageParams(c)
	page, err := models.PaginateCustomers(c.Request.Context(), limit, after, c.Query("q"))
	if err != nil {
		respondError(c, "listCustomers", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func getCustomer(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	customer, err := models.GetCustomer(c.Request.Context(), id)
	if err != nil {
		respondError(c, "getCustomer", err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func createCustomer(c *gin.Context) {
	var input models.NewCustomer
	if !bindJSON(c, &input) {
		return
	}
	customer, err := models.CreateCustomer(c.Request.Context(), &input)
	if err != nil {
		respondError(c, "createCustomer", err)
		return
	}
	c.JSON(http.StatusCreated, customer)
}

func updateCustomer(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input models.NewCustomer
	if !bindJSON(c, &input) {
		return
	}
	customer, err := models.UpdateCustomer(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, "updateCustomer", err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func toggleCustomer(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req toggleActiveRequest
	if !bindJSON(c, &req) {
		return
	}
	customer, err := models.ToggleActiveCustomer(c.Request.Context(), id, *req.IsActive)
	if err != nil {
		respondError(c, "toggleCustomer", err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func deleteCustomer(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	customer, err := models.DeleteCustomer(c.Request.Context(), id)
	if err != nil {
		respondError(c, "deleteCustomer", err)
		return
	}
	c.JSON(http.StatusOK, customer)
}
