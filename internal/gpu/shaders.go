package gpu

// The vertex shader expands meshlets without mesh shaders: every group of
// maxPrims*3 vertex invocations belongs to one meshlet, and invocations past
// the meshlet's primitive count emit a degenerate triangle.
const meshletVertexShader = `
#version 410 core

uniform usamplerBuffer uMeshlets;      // RGBA32UI: VertCount, VertOffset, PrimCount, PrimOffset
uniform usamplerBuffer uPrimitives;    // R32UI: packed 10:10:10 triangles
uniform usamplerBuffer uUniqueIndices; // R16UI or R32UI
uniform samplerBuffer  uVertices;      // R32F

uniform mat4 uViewProj;
uniform mat4 uWorld;
uniform mat4 uWorldInvTranspose;
uniform int  uVertexStride; // in floats
uniform int  uNormalOffset; // in floats
uniform int  uMaxPrims;

flat out uint vMeshlet;
out vec3 vNormal;
out vec3 vWorldPos;

void main() {
	int meshletIndex = gl_VertexID / (uMaxPrims * 3);
	int prim = (gl_VertexID / 3) % uMaxPrims;
	int corner = gl_VertexID % 3;

	uvec4 m = texelFetch(uMeshlets, meshletIndex);
	vMeshlet = uint(meshletIndex);
	if (uint(prim) >= m.z) {
		gl_Position = vec4(0.0);
		vNormal = vec3(0.0);
		vWorldPos = vec3(0.0);
		return;
	}

	uint packed = texelFetch(uPrimitives, int(m.w) + prim).r;
	uint local = (packed >> (10u * uint(corner))) & 0x3FFu;
	int vertex = int(texelFetch(uUniqueIndices, int(m.y + local)).r);

	int base = vertex * uVertexStride;
	vec3 pos = vec3(texelFetch(uVertices, base).r,
	                texelFetch(uVertices, base + 1).r,
	                texelFetch(uVertices, base + 2).r);
	int nb = base + uNormalOffset;
	vec3 nrm = vec3(texelFetch(uVertices, nb).r,
	                texelFetch(uVertices, nb + 1).r,
	                texelFetch(uVertices, nb + 2).r);

	vec4 world = uWorld * vec4(pos, 1.0);
	vWorldPos = world.xyz;
	vNormal = (uWorldInvTranspose * vec4(nrm, 0.0)).xyz;
	gl_Position = uViewProj * world;
}
`

const meshletFragmentShader = `
#version 410 core

uniform int  uRenderMode; // 0 flat, 1 meshlets, 2 lod
uniform int  uLevel;
uniform vec3 uViewPosition;

flat in uint vMeshlet;
in vec3 vNormal;
in vec3 vWorldPos;

out vec4 FragColor;

vec3 palette(uint i) {
	uint h = i * 2654435761u;
	return vec3(float(h & 0xFFu), float((h >> 8) & 0xFFu), float((h >> 16) & 0xFFu)) / 255.0;
}

void main() {
	vec3 base = vec3(0.8);
	if (uRenderMode == 1) {
		base = palette(vMeshlet);
	} else if (uRenderMode == 2) {
		base = palette(uint(uLevel) + 1u);
	}

	vec3 n = normalize(vNormal);
	vec3 l = normalize(vec3(1.0, 1.0, 1.0));
	vec3 v = normalize(uViewPosition - vWorldPos);
	float diffuse = max(dot(n, l), 0.0);
	float specular = pow(max(dot(reflect(-l, n), v), 0.0), 32.0);
	FragColor = vec4(base * (0.2 + 0.7 * diffuse) + vec3(0.3 * specular), 1.0);
}
`
